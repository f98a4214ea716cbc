package logging

import (
	"log/slog"
	"strings"
)

// LevelFromString treats a missing value as INFO.
func LevelFromString(str *string) slog.Level {
	if str == nil {
		return slog.LevelInfo
	}
	return ParseLevel(*str)
}

// ParseLevel falls back to INFO for anything it does not recognize.
func ParseLevel(str string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(str)) {
	case slog.LevelDebug.String():
		return slog.LevelDebug
	case slog.LevelWarn.String(), "WARNING":
		return slog.LevelWarn
	case slog.LevelError.String():
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
