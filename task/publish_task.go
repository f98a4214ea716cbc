package task

import (
	"log/slog"
	"time"

	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/metrics"
	"github.com/icodeforyou/ews-go/mqttpub"
)

type PricePublisher interface {
	PublishPrice(msg mqttpub.PriceMessage) error
}

func NewPublishTask(logger *slog.Logger, client *ews.Client, publisher PricePublisher, m *metrics.Metrics) func() {
	return func() { runPublishTask(logger, client, publisher, m, time.Now()) }
}

func runPublishTask(logger *slog.Logger, client *ews.Client, publisher PricePublisher, m *metrics.Metrics, now time.Time) {
	logger.Debug("running publish task...")
	started := time.Now()

	meta := client.Meta()
	current := ews.CurrentPrice(client.Prices(), now)
	if !meta.IsValid() || !current.IsValid() {
		logger.Warn("publish task skipped, no current price")
		m.UpdateJob("publish", started, nil)
		return
	}

	m.SetCurrentPrice(current.Value(), meta.Value().Unit)

	if publisher != nil {
		if err := publisher.PublishPrice(mqttpub.NewPriceMessage(current.Value(), meta.Value())); err != nil {
			logger.Error("publish task error", slog.Any("error", err))
			m.UpdateJob("publish", started, err)
			return
		}
	}

	m.UpdateJob("publish", started, nil)
	logger.Info("publish task done",
		slog.Float64("total", current.Value().TotalPrice),
		slog.String("unit", meta.Value().Unit))
}
