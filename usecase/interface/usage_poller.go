package usecase

import (
	"context"
)

// UsagePoller periodically fetches Copilot usage and publishes the latest day
type UsagePoller interface {
	// Run polls immediately and then once per interval until ctx is cancelled.
	// It returns nil on cancellation; individual cycle failures never stop the loop.
	Run(ctx context.Context) error

	// PollOnce performs a single fetch, select and apply cycle.
	// The returned error carries a domain.ErrorCode describing what failed;
	// ErrCodeNoDataAvailable means the API answered with no records.
	PollOnce(ctx context.Context) error
}
