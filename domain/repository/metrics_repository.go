package repository

import (
	"context"
	"time"

	"github.com/ca-srg/copilot-exporter/domain/entity"
)

// PollResult classifies the outcome of one poll cycle
type PollResult string

const (
	PollResultSuccess        PollResult = "success"
	PollResultEmpty          PollResult = "empty"
	PollResultHTTPError      PollResult = "http_error"
	PollResultTransportError PollResult = "transport_error"
	PollResultDecodeError    PollResult = "decode_error"
	PollResultMetricsError   PollResult = "metrics_error"
)

// PollResults lists every PollResult in a stable order
func PollResults() []PollResult {
	return []PollResult{
		PollResultSuccess,
		PollResultEmpty,
		PollResultHTTPError,
		PollResultTransportError,
		PollResultDecodeError,
		PollResultMetricsError,
	}
}

// UsageMetricsRepository holds the published gauge state
type UsageMetricsRepository interface {
	// ApplyDailyUsage overwrites the scalar gauges with the record's totals and then
	// sets the labelled gauges for every breakdown entry. Label combinations not
	// present in the record keep their previous value.
	ApplyDailyUsage(record *entity.DailyUsageRecord) error

	// RecordPollResult updates the exporter's own bookkeeping metrics
	RecordPollResult(result PollResult, at time.Time)
}

// MetricsPusher sends the current gauge snapshot to an external metrics system
type MetricsPusher interface {
	// Push sends every published usage gauge once
	Push(ctx context.Context) error

	// Close cleans up any resources used by the pusher
	Close() error
}
