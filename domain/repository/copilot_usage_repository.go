package repository

import (
	"context"

	"github.com/ca-srg/copilot-exporter/domain/entity"
)

// CopilotUsageRepository defines the interface for reading Copilot usage from GitHub
type CopilotUsageRepository interface {
	// GetDailyUsage fetches the organization's daily usage records in response order.
	// A nil or empty slice with a nil error means the API returned no records.
	GetDailyUsage(ctx context.Context) ([]entity.DailyUsageRecord, error)

	// Organization returns the organization the repository is scoped to
	Organization() string
}
