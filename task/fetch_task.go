package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/hours"
	"github.com/icodeforyou/ews-go/metrics"
)

func NewFetchTask(logger *slog.Logger, client *ews.Client, m *metrics.Metrics) func() {
	if needImmediateFetch(client) {
		logger.Info("need an immediate fetch of prices")
		runFetchTask(logger, client, m)
	} else {
		logger.Debug("no need for immediate fetch of prices")
	}

	return func() { runFetchTask(logger, client, m) }
}

func runFetchTask(logger *slog.Logger, client *ews.Client, m *metrics.Metrics) {
	logger.Debug("running fetch task...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	started := time.Now()
	ok, err := client.Fetch(ctx)
	prices := client.Prices()
	m.ObserveFetch(started, ok, err, client.LastFailure(), len(prices))

	if err != nil {
		logger.Error("fetch task error", slog.Any("error", err))
		m.UpdateJob("fetch", started, err)
		return
	}
	if !ok {
		logger.Warn("fetch task got no new prices, keeping previous ones",
			slog.Any("reason", client.LastFailure()),
			slog.Int("noOfCachedPrices", len(prices)))
		m.UpdateJob("fetch", started, client.LastFailure())
		return
	}

	for _, p := range prices {
		logger.Debug("price",
			slog.String("hour", hours.FromTime(p.StartsAt).LocalizedString()),
			slog.Float64("total", p.TotalPrice))
	}

	m.UpdateJob("fetch", started, nil)
	logger.Info("fetch task done", slog.Int("noOfPrices", len(prices)))
}

// A fetch is needed when there is no price bracketing the next hour.
func needImmediateFetch(client *ews.Client) bool {
	return !ews.CurrentPrice(client.Prices(), time.Now().Add(time.Hour)).IsValid()
}
