package task

import (
	"log/slog"
)

// cronLogger makes cron log through slog. cron's routine messages go to debug.
type cronLogger struct {
	logger *slog.Logger
}

func newCronLogger(logger *slog.Logger) cronLogger {
	return cronLogger{logger: logger}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
