package repository

import (
	"context"

	"github.com/ca-srg/copilot-exporter/domain/repository"
)

// NoOpMetricsPusher is a no-op implementation of MetricsPusher
// Used when Remote Write is not configured
type NoOpMetricsPusher struct{}

// NewNoOpMetricsPusher creates a new no-op metrics pusher
func NewNoOpMetricsPusher() repository.MetricsPusher {
	return &NoOpMetricsPusher{}
}

// Push does nothing
func (p *NoOpMetricsPusher) Push(ctx context.Context) error {
	return nil
}

// Close does nothing
func (p *NoOpMetricsPusher) Close() error {
	return nil
}
