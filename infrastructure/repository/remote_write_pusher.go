package repository

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/domain/repository"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
)

// RemoteWritePusher implements MetricsPusher by forwarding the usage gauges via Remote Write
type RemoteWritePusher struct {
	gatherer     prometheus.Gatherer
	rwClient     *RemoteWriteClient
	organization string
	now          func() time.Time
}

// NewRemoteWritePusher creates a pusher reading from gatherer
func NewRemoteWritePusher(cfg *config.RemoteWriteConfig, gatherer prometheus.Gatherer, organization string) (repository.MetricsPusher, error) {
	if !cfg.Enabled() {
		return nil, domain.ErrConfiguration("remote_write.url", "is empty")
	}

	// Create authentication config (always use basic auth if credentials are provided)
	var authConfig *AuthConfig
	if cfg.Username != "" && cfg.Password != "" {
		authConfig = &AuthConfig{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	rwClient, err := NewRemoteWriteClient(cfg.URL, time.Duration(cfg.TimeoutSec)*time.Second, authConfig)
	if err != nil {
		return nil, domain.ErrMetricsWithCause("initialize remote write", err)
	}

	return &RemoteWritePusher{
		gatherer:     gatherer,
		rwClient:     rwClient,
		organization: organization,
		now:          time.Now,
	}, nil
}

// Push sends every github_copilot_* gauge sample in a single request
func (p *RemoteWritePusher) Push(ctx context.Context) error {
	families, err := p.gatherer.Gather()
	if err != nil {
		return domain.ErrMetricsWithCause("gather", err)
	}

	series := usageSeries(families, p.organization, p.now().UnixMilli())
	if len(series) == 0 {
		return nil
	}

	if err := p.rwClient.Send(ctx, series); err != nil {
		return domain.ErrMetricsWithCause("remote write", err).
			WithDetails("series", len(series))
	}

	return nil
}

// Close cleans up resources
func (p *RemoteWritePusher) Close() error {
	// Remote Write client doesn't require explicit cleanup
	return nil
}

// usageSeries converts the usage gauge families into remote write series
func usageSeries(families []*dto.MetricFamily, organization string, timestamp int64) []TimeSeries {
	var series []TimeSeries
	for _, mf := range families {
		name := mf.GetName()
		if !isUsageFamily(mf) {
			continue
		}

		for _, m := range mf.GetMetric() {
			labels := []Label{{Name: "__name__", Value: name}}
			if organization != "" {
				labels = append(labels, Label{Name: "organization", Value: organization})
			}
			for _, lp := range m.GetLabel() {
				labels = append(labels, Label{Name: lp.GetName(), Value: lp.GetValue()})
			}

			series = append(series, TimeSeries{
				Labels:  labels,
				Samples: []Sample{{Value: m.GetGauge().GetValue(), Timestamp: timestamp}},
			})
		}
	}
	return series
}
