package www

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/ews-go/config"
	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/hours"
	"github.com/icodeforyou/ews-go/metrics"
	"github.com/icodeforyou/ews-go/mqttpub"
	"github.com/icodeforyou/ews-go/types/maybe"
)

// PriceSource is the read side of *ews.Client.
type PriceSource interface {
	Prices() []ews.PricePoint
	Meta() maybe.Maybe[ews.PriceMetadata]
	LastFailure() error
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	source  PriceSource
	hub     *Hub
	handler http.Handler
	now     func() time.Time
}

func NewServer(source PriceSource, m *metrics.Metrics, config config.AppConfigApi) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger: logger,
		config: config,
		source: source,
		hub:    NewHub(logger.With(slog.String("component", "hub"))),
		now:    time.Now,
	}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("GET /api/prices", logReqMW(http.HandlerFunc(s.handlePrices)))
	mux.Handle("GET /api/now", logReqMW(http.HandlerFunc(s.handleNow)))
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		client, err := NewClient(s.hub, w, r, r.Header.Get("User-Agent"))
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		s.hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	})
	s.handler = mux

	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done. While running, the current price is checked
// every push interval and sent to websocket clients when it changed.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting server...", slog.String("address", s.config.Address))
	srv := &http.Server{
		Addr:              s.config.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.hub.Run(ctx)

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	ticker := time.NewTicker(s.config.GetPushInterval())
	defer ticker.Stop()

	var last []byte
	s.push(&last)

	for {
		select {
		case err := <-srvErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil

		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("server shutdown failed", slog.Any("error", err))
				return err
			}
			return nil

		case <-ticker.C:
			s.push(&last)
		}
	}
}

func (s *Server) push(last *[]byte) {
	msg := s.currentMessage()
	if !msg.IsValid() {
		return
	}
	buf, err := json.Marshal(msg.Value())
	if err != nil {
		s.logger.Error("failed to encode price message", slog.Any("error", err))
		return
	}
	if bytes.Equal(buf, *last) {
		return
	}
	*last = buf
	s.hub.Broadcast(buf)
}

func (s *Server) currentMessage() maybe.Maybe[mqttpub.PriceMessage] {
	meta := s.source.Meta()
	current := ews.CurrentPrice(s.source.Prices(), s.now())
	if !meta.IsValid() || !current.IsValid() {
		return maybe.None[mqttpub.PriceMessage]()
	}
	return maybe.Some(mqttpub.NewPriceMessage(current.Value(), meta.Value()))
}

type metaResponse struct {
	Interval     int    `json:"interval"`
	IntervalUnit string `json:"intervalUnit"`
	Unit         string `json:"priceUnit"`
	Tariff       string `json:"tariff"`
}

type pricesResponse struct {
	Meta        *metaResponse    `json:"meta,omitempty"`
	Prices      []ews.PricePoint `json:"prices"`
	LastFailure string           `json:"lastFailure,omitempty"`
}

// handlePrices answers with the cached prices, optionally only those of
// ?date=YYYY-MM-DD.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	prices := s.source.Prices()
	if date := r.URL.Query().Get("date"); date != "" {
		day, err := hours.ParseDate(date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		prices = ews.MatchDate(prices, day)
	}

	res := pricesResponse{Prices: prices}
	if prices == nil {
		res.Prices = []ews.PricePoint{}
	}
	if meta := s.source.Meta(); meta.IsValid() {
		m := meta.Value()
		res.Meta = &metaResponse{Interval: m.Interval, IntervalUnit: m.IntervalUnit, Unit: m.Unit, Tariff: m.Tariff}
	}
	if err := s.source.LastFailure(); err != nil {
		res.LastFailure = err.Error()
	}
	writeJson(w, s.logger, http.StatusOK, res)
}

func (s *Server) handleNow(w http.ResponseWriter, r *http.Request) {
	msg := s.currentMessage()
	if !msg.IsValid() {
		http.Error(w, "no current price", http.StatusNotFound)
		return
	}
	writeJson(w, s.logger, http.StatusOK, msg.Value())
}
