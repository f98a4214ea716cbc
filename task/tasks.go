package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/icodeforyou/ews-go/config"
	"github.com/icodeforyou/ews-go/ews"
	"github.com/icodeforyou/ews-go/metrics"
	"github.com/robfig/cron/v3"
)

type Tasks struct {
	cron        *cron.Cron
	cnfg        *config.AppConfig
	FetchTask   func()
	PublishTask func()
}

// NewTasks builds the scheduled tasks. publisher may be nil when nothing
// should be published.
func NewTasks(
	client *ews.Client,
	publisher PricePublisher,
	m *metrics.Metrics,
	cnfg *config.AppConfig,
) *Tasks {
	logger := slog.Default().With("module", "tasks")
	cronLogger := newCronLogger(logger.With(slog.String("component", "cron")))
	return &Tasks{
		// Skipping overlapping runs keeps at most one request in flight
		cron:        cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		cnfg:        cnfg,
		FetchTask:   NewFetchTask(logger.With(slog.String("task", "fetch")), client, m),
		PublishTask: NewPublishTask(logger.With(slog.String("task", "publish")), client, publisher, m),
	}
}

func (t *Tasks) Run() error {
	if _, err := t.cron.AddFunc(t.cnfg.Schedule.GetFetchAt(), t.FetchTask); err != nil {
		return fmt.Errorf("scheduling fetch task: %w", err)
	}
	if _, err := t.cron.AddFunc(t.cnfg.Schedule.GetPublishAt(), t.PublishTask); err != nil {
		return fmt.Errorf("scheduling publish task: %w", err)
	}
	t.cron.Start()
	return nil
}

func (t *Tasks) Stop() context.Context {
	return t.cron.Stop()
}
