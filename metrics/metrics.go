package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/icodeforyou/ews-go/ews"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of the watch daemon. They live in their own
// registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	FetchesTotal      *prometheus.CounterVec
	FetchDuration     prometheus.Histogram
	PricesCached      prometheus.Gauge
	CurrentPrice      *prometheus.GaugeVec
	LastSuccess       prometheus.Gauge
	JobFailuresTotal  *prometheus.CounterVec
	JobLastRunSeconds *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_fetches_total",
			Help: "Total number of price fetches per result",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ews_fetch_duration_seconds",
			Help:    "Duration of price fetches in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		PricesCached: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ews_prices_cached",
			Help: "Number of price points held by the client",
		}),
		CurrentPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ews_current_price",
			Help: "Current price per component in the unit given by the API",
		}, []string{"component", "unit"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ews_last_successful_fetch_timestamp",
			Help: "Unix timestamp of the last successful fetch",
		}),
		JobFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ews_job_failures_total",
			Help: "Total number of failed executions per job",
		}, []string{"job"}),
		JobLastRunSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ews_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		}, []string{"job"}),
	}

	m.Registry.MustRegister(
		m.FetchesTotal,
		m.FetchDuration,
		m.PricesCached,
		m.CurrentPrice,
		m.LastSuccess,
		m.JobFailuresTotal,
		m.JobLastRunSeconds,
	)
	return m
}

// FetchResult is the label value for one outcome of ews.Client.Fetch.
func FetchResult(ok bool, fetchErr error, lastFailure error) string {
	if ok {
		return "success"
	}
	err := fetchErr
	if err == nil {
		err = lastFailure
	}
	switch {
	case errors.Is(err, ews.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ews.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ews.ErrInternal):
		return "internal_error"
	case errors.Is(err, ews.ErrConnection):
		return "connection_error"
	case errors.Is(err, ews.ErrMalformedResponse):
		return "malformed_response"
	default:
		return "error"
	}
}

func (m *Metrics) ObserveFetch(startedAt time.Time, ok bool, fetchErr error, lastFailure error, noOfPrices int) {
	m.FetchDuration.Observe(time.Since(startedAt).Seconds())
	m.FetchesTotal.WithLabelValues(FetchResult(ok, fetchErr, lastFailure)).Inc()
	m.PricesCached.Set(float64(noOfPrices))
	if ok {
		m.LastSuccess.Set(float64(time.Now().Unix()))
	}
}

func (m *Metrics) SetCurrentPrice(p ews.PricePoint, unit string) {
	m.CurrentPrice.WithLabelValues("dynamic", unit).Set(p.DynamicPrice)
	m.CurrentPrice.WithLabelValues("static", unit).Set(p.StaticPrice)
	m.CurrentPrice.WithLabelValues("total", unit).Set(p.TotalPrice)
}

func (m *Metrics) UpdateJob(job string, startedAt time.Time, err error) {
	m.JobLastRunSeconds.WithLabelValues(job).Set(time.Since(startedAt).Seconds())
	if err != nil {
		m.JobFailuresTotal.WithLabelValues(job).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
