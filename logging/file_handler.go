package logging

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

type FileOptions struct {
	Path       string
	Level      slog.Level
	MaxSizeMb  int
	MaxBackups int
}

// NewFileHandler writes JSON records to a size rotated log file. The returned
// closer must be closed on shutdown.
func NewFileHandler(opts FileOptions) (slog.Handler, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMb,
		MaxBackups: opts.MaxBackups,
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level}), w
}
