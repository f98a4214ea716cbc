package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

func NewConsoleHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}

// New returns a logger writing to the console and, if opts.Path is set, to a
// rotated log file. The returned func closes the file and is never nil.
func New(w io.Writer, consoleLevel slog.Level, opts FileOptions) (*slog.Logger, func() error) {
	console := NewConsoleHandler(w, consoleLevel)
	if opts.Path == "" {
		return slog.New(console), func() error { return nil }
	}

	file, closer := NewFileHandler(opts)
	return slog.New(NewMultiHandler(console, file)), closer.Close
}
