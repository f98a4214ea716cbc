package ews

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/icodeforyou/ews-go/types/maybe"
)

const (
	DataEndpoint   = "https://api.ews-schoenau.de/v1/prices"
	DefaultTimeout = 10 * time.Second

	headerAPIKey    = "X-API-KEY"
	headerUserAgent = "User-Agent"
)

type settings struct {
	endpoint   string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*settings)

func WithEndpoint(endpoint string) Option {
	return func(s *settings) { s.endpoint = endpoint }
}

func WithUserAgent(userAgent string) Option {
	return func(s *settings) { s.userAgent = userAgent }
}

// WithTimeout is ignored when WithHTTPClient is also given.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) { s.timeout = timeout }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) { s.httpClient = httpClient }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func newSettings(opts []Option) settings {
	s := settings{
		endpoint:  DataEndpoint,
		userAgent: DefaultUserAgent(),
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{
			Timeout:   s.timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}
	if s.logger == nil {
		s.logger = slog.Default().With("module", "ews")
	}
	return s
}

// Client talks to the EWS price API over one persistent session and keeps the
// result of the last successful fetch. Reading its state is safe from any
// goroutine. Calls to Fetch must not overlap, a slower earlier response would
// otherwise replace a newer one.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.RWMutex
	apiKey      string
	meta        maybe.Maybe[PriceMetadata]
	data        []PricePoint
	lastFailure error
}

// New creates a client bound to apiKey. No request is made.
func New(apiKey string, opts ...Option) *Client {
	s := newSettings(opts)
	return &Client{
		endpoint:   s.endpoint,
		userAgent:  s.userAgent,
		httpClient: s.httpClient,
		logger:     s.logger,
		apiKey:     apiKey,
		meta:       maybe.None[PriceMetadata](),
		data:       []PricePoint{},
	}
}

// Authenticate reports whether the API answers apiKey with a 2xx status.
// Transport errors are logged and reported as false.
func Authenticate(ctx context.Context, apiKey string, opts ...Option) bool {
	s := newSettings(opts)
	return probe(ctx, s.httpClient, s.logger, s.endpoint, s.userAgent, apiKey)
}

// Reauth probes apiKey and, if it is accepted, uses it for all following
// requests. A rejected key leaves the current one in place.
func (c *Client) Reauth(ctx context.Context, apiKey string) bool {
	if !probe(ctx, c.httpClient, c.logger, c.endpoint, c.userAgent, apiKey) {
		c.logger.Warn("new api key rejected, keeping the current one")
		return false
	}

	c.mu.Lock()
	c.apiKey = apiKey
	c.mu.Unlock()

	c.logger.Info("api key updated")
	return true
}

func probe(ctx context.Context, httpClient *http.Client, logger *slog.Logger, endpoint, userAgent, apiKey string) bool {
	req, err := newRequest(ctx, endpoint, userAgent, apiKey)
	if err != nil {
		logger.Error("error creating authentication request", slog.Any("error", err))
		return false
	}

	res, err := httpClient.Do(req)
	if err != nil {
		logger.Error("authentication request failed", slog.Any("error", err))
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	logger.Debug("authentication response", slog.Int("status", res.StatusCode))
	return ErrorFromStatus(res.StatusCode) == nil
}

func newRequest(ctx context.Context, endpoint, userAgent, apiKey string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerUserAgent, userAgent)
	req.Header.Set(headerAPIKey, apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Fetch makes one request and, on success, replaces metadata and prices.
//
// A non-2xx answer returns false and a nil error. Transport failures return
// an error matching ErrConnection and a body that cannot be parsed returns a
// *ParseError. In every failing case the previous prices are kept.
func (c *Client) Fetch(ctx context.Context) (bool, error) {
	c.mu.RLock()
	apiKey := c.apiKey
	c.mu.RUnlock()

	req, err := newRequest(ctx, c.endpoint, c.userAgent, apiKey)
	if err != nil {
		return false, c.fail(err)
	}

	started := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return false, c.fail(connectionError(err))
	}
	defer res.Body.Close()

	if statusErr := ErrorFromStatus(res.StatusCode); statusErr != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		c.fail(statusErr)
		return false, nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return false, c.fail(connectionError(fmt.Errorf("failed to read response: %w", err)))
	}

	meta, prices, err := parsePayload(body)
	if err != nil {
		return false, c.fail(err)
	}

	c.mu.Lock()
	c.meta = maybe.Some(meta)
	c.data = prices
	c.lastFailure = nil
	c.mu.Unlock()

	c.logger.Debug("prices fetched",
		slog.Int("noOfPrices", len(prices)),
		slog.String("tariff", meta.Tariff),
		slog.Duration("duration", time.Since(started)))
	return true, nil
}

func (c *Client) fail(err error) error {
	c.mu.Lock()
	c.lastFailure = err
	c.mu.Unlock()
	c.logger.Warn("fetching prices failed, keeping previous prices", slog.Any("error", err))
	return err
}

// Get fetches and returns the cached prices. A non-2xx answer is not
// reported, the previous prices are returned instead.
func (c *Client) Get(ctx context.Context) ([]PricePoint, error) {
	if _, err := c.Fetch(ctx); err != nil {
		return nil, err
	}
	return c.Prices(), nil
}

// LastFailure returns why the latest Fetch failed, or nil if it succeeded.
func (c *Client) LastFailure() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastFailure
}

func (c *Client) Meta() maybe.Maybe[PriceMetadata] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta
}

func (c *Client) Prices() []PricePoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Copy(c.data)
}

// Close releases the idle connections of the session. A client built without
// WithHTTPClient owns its transport, so other clients are not affected.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
