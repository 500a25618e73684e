package logging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ic2hrmk/promtail"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
)

const appLabel = "copilot-exporter"

// NewPromtailClient creates a Loki push client shared by every component logger
func NewPromtailClient(cfg *config.PromtailConfig) (promtail.Client, error) {
	// Default labels for all logs
	defaultLabels := map[string]string{
		"app": appLabel,
	}

	client, err := promtail.NewJSONv1Client(
		cfg.URL,
		defaultLabels,
		promtail.WithSendBatchSize(100),
		promtail.WithSendBatchTimeout(time.Duration(cfg.BatchWaitSeconds)*time.Second),
		promtail.WithBasicAuth(cfg.Username, cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create promtail client: %w", err)
	}
	return client, nil
}

// PromtailLogger ships log lines to Loki. Only level and component become stream
// labels; structured fields are appended to the line so the label set stays bounded.
type PromtailLogger struct {
	client    promtail.Client
	component string
	fields    []domain.Field
	mu        sync.RWMutex
}

func NewPromtailLogger(client promtail.Client, component string) *PromtailLogger {
	return &PromtailLogger{
		client:    client,
		component: component,
		fields:    []domain.Field{},
	}
}

func (p *PromtailLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	p.log(domain.LogLevelDebug, msg, fields...)
}

func (p *PromtailLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	p.log(domain.LogLevelInfo, msg, fields...)
}

func (p *PromtailLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	p.log(domain.LogLevelWarn, msg, fields...)
}

func (p *PromtailLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	p.log(domain.LogLevelError, msg, fields...)
}

func (p *PromtailLogger) WithFields(fields ...domain.Field) domain.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()

	newFields := make([]domain.Field, len(p.fields)+len(fields))
	copy(newFields, p.fields)
	copy(newFields[len(p.fields):], fields)

	return &PromtailLogger{
		client:    p.client,
		component: p.component,
		fields:    newFields,
	}
}

func (p *PromtailLogger) log(level domain.LogLevel, msg string, fields ...domain.Field) {
	if p.client == nil {
		return
	}

	p.mu.RLock()
	line := formatLine(msg, p.fields, fields)
	p.mu.RUnlock()

	labels := map[string]string{
		"level":     level.String(),
		"component": p.component,
	}

	p.client.LogfWithLabels(toPromtailLevel(level), labels, "%s", line)
}

// formatLine renders msg followed by key=value pairs
func formatLine(msg string, base, extra []domain.Field) string {
	if len(base)+len(extra) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	for _, group := range [][]domain.Field{base, extra} {
		for _, field := range group {
			value := fmt.Sprintf("%v", field.Value)
			if strings.ContainsAny(value, " \t\"=") {
				value = fmt.Sprintf("%q", value)
			}
			fmt.Fprintf(&b, " %s=%s", field.Key, value)
		}
	}
	return b.String()
}

func toPromtailLevel(level domain.LogLevel) promtail.Level {
	switch level {
	case domain.LogLevelDebug:
		return promtail.Debug
	case domain.LogLevelWarn:
		return promtail.Warn
	case domain.LogLevelError:
		return promtail.Error
	default:
		return promtail.Info
	}
}
