package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON slog logger on stdout at the provided level, tagging every
// record with attrs. An invalid level falls back to info.
func New(level string, attrs ...slog.Attr) *slog.Logger {
	return NewWriter(os.Stdout, level, attrs...)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, level string, attrs ...slog.Attr) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler.WithAttrs(attrs))
}

// ParseLevel maps a LOG_LEVEL value to a slog level. "warning" is accepted as
// an alias of "warn".
func ParseLevel(level string) slog.Level {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "warning" {
		level = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
