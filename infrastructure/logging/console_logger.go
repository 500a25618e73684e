package logging

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/ca-srg/copilot-exporter/domain"
)

// ConsoleLogger writes structured log lines to a local stream using zerolog
type ConsoleLogger struct {
	logger zerolog.Logger
}

// NewConsoleLogger creates a ConsoleLogger for component. format "console" selects
// the human readable writer, anything else emits one JSON object per line.
func NewConsoleLogger(out io.Writer, component, format string) *ConsoleLogger {
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	// Level filtering is done by LevelFilterLogger so every sink agrees
	logger := zerolog.New(out).
		Level(zerolog.DebugLevel).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	return &ConsoleLogger{logger: logger}
}

func (c *ConsoleLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	write(c.logger.Debug(), msg, fields)
}

func (c *ConsoleLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	write(c.logger.Info(), msg, fields)
}

func (c *ConsoleLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	write(c.logger.Warn(), msg, fields)
}

func (c *ConsoleLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	write(c.logger.Error(), msg, fields)
}

func (c *ConsoleLogger) WithFields(fields ...domain.Field) domain.Logger {
	ctx := c.logger.With()
	for _, field := range fields {
		ctx = ctx.Interface(field.Key, field.Value)
	}
	return &ConsoleLogger{logger: ctx.Logger()}
}

func write(event *zerolog.Event, msg string, fields []domain.Field) {
	for _, field := range fields {
		event = event.Interface(field.Key, field.Value)
	}
	event.Msg(msg)
}
