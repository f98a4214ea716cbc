package mqttpub

import (
	"context"
	"fmt"
	"log/slog"
)

// pahoLogger adapts slog to the Println/Printf loggers paho expects.
type pahoLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func newPahoLogger(logger *slog.Logger, level slog.Level) *pahoLogger {
	return &pahoLogger{logger: logger, level: level}
}

func (l *pahoLogger) Println(v ...any) {
	l.logger.Log(context.Background(), l.level, fmt.Sprint(v...))
}

func (l *pahoLogger) Printf(format string, v ...any) {
	l.logger.Log(context.Background(), l.level, fmt.Sprintf(format, v...))
}
