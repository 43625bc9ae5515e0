package observability

import (
	"log/slog"
	"os"
)

type Logger struct {
	*slog.Logger
}

// NewLogger returns a JSON structured logger tagged with the service name.
func NewLogger(serviceName string) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := slog.New(handler).With("service", serviceName)
	return &Logger{logger}
}

// WithComponent returns a child logger scoped to a component within the service.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.Logger.With("component", name)}
}
