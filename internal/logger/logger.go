package logger

import (
	"log/slog"
	"os"
)

// New builds the process-wide JSON logger. Every record carries the service
// attribute so marketplace lines are filterable in shared log storage.
func New() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler).With(slog.String("service", "marketplace"))
}
