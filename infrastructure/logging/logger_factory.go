package logging

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/ic2hrmk/promtail"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
)

var _ domain.LoggerFactory = (*LoggerFactoryImpl)(nil)

type LoggerFactoryImpl struct {
	config *config.LoggingConfig
	out    io.Writer

	once     sync.Once
	promtail promtail.Client
}

func NewLoggerFactory(config *config.LoggingConfig) *LoggerFactoryImpl {
	return newLoggerFactory(config, os.Stdout)
}

func newLoggerFactory(cfg *config.LoggingConfig, out io.Writer) *LoggerFactoryImpl {
	if cfg == nil {
		cfg = config.DefaultConfig().Logging
	}
	return &LoggerFactoryImpl{
		config: cfg,
		out:    out,
	}
}

func (f *LoggerFactoryImpl) CreateLogger(component string) domain.Logger {
	format := f.config.Format
	if f.config.Debug {
		format = "console"
	}

	var logger domain.Logger = NewConsoleLogger(f.out, component, format)
	if client := f.promtailClient(); client != nil {
		logger = NewTeeLogger(logger, NewPromtailLogger(client, component))
	}

	// Apply log level filtering
	return NewLevelFilterLogger(logger, f.minLevel())
}

// Shutdown flushes and closes the shared promtail client
func (f *LoggerFactoryImpl) Shutdown() error {
	if f.promtail != nil {
		f.promtail.Close()
	}
	return nil
}

func (f *LoggerFactoryImpl) promtailClient() promtail.Client {
	f.once.Do(func() {
		p := f.config.Promtail
		if p == nil || p.URL == "" {
			return
		}

		client, err := NewPromtailClient(p)
		if err != nil {
			// Loki is optional; keep logging to the console
			NewConsoleLogger(f.out, "logging", f.config.Format).
				Warn(context.Background(), "promtail disabled", domain.ErrorField(err))
			return
		}
		f.promtail = client
	})
	return f.promtail
}

func (f *LoggerFactoryImpl) minLevel() domain.LogLevel {
	if f.config.Debug {
		return domain.LogLevelDebug
	}
	return domain.ParseLogLevel(f.config.Level)
}

// LevelFilterLogger filters log messages based on minimum level
type LevelFilterLogger struct {
	wrapped  domain.Logger
	minLevel domain.LogLevel
}

func NewLevelFilterLogger(wrapped domain.Logger, minLevel domain.LogLevel) *LevelFilterLogger {
	return &LevelFilterLogger{
		wrapped:  wrapped,
		minLevel: minLevel,
	}
}

func (l *LevelFilterLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	if domain.LogLevelDebug >= l.minLevel {
		l.wrapped.Debug(ctx, msg, fields...)
	}
}

func (l *LevelFilterLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	if domain.LogLevelInfo >= l.minLevel {
		l.wrapped.Info(ctx, msg, fields...)
	}
}

func (l *LevelFilterLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	if domain.LogLevelWarn >= l.minLevel {
		l.wrapped.Warn(ctx, msg, fields...)
	}
}

func (l *LevelFilterLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	if domain.LogLevelError >= l.minLevel {
		l.wrapped.Error(ctx, msg, fields...)
	}
}

func (l *LevelFilterLogger) WithFields(fields ...domain.Field) domain.Logger {
	return &LevelFilterLogger{
		wrapped:  l.wrapped.WithFields(fields...),
		minLevel: l.minLevel,
	}
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {}
func (n *NoOpLogger) Info(ctx context.Context, msg string, fields ...domain.Field)  {}
func (n *NoOpLogger) Warn(ctx context.Context, msg string, fields ...domain.Field)  {}
func (n *NoOpLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {}
func (n *NoOpLogger) WithFields(fields ...domain.Field) domain.Logger {
	return n
}
