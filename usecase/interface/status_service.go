package usecase

import (
	"time"

	"github.com/ca-srg/copilot-exporter/domain/repository"
)

// StatusInfo represents the current status of the exporter
type StatusInfo struct {
	// IsRunning indicates whether the usage poller loop is active
	IsRunning bool `json:"is_running"`

	// Organization is the GitHub organization being exported
	Organization string `json:"organization"`

	// StartedAt is the timestamp when the poller was started
	StartedAt *time.Time `json:"started_at,omitempty"`

	// LastPollAt is the timestamp of the last completed poll cycle
	LastPollAt *time.Time `json:"last_poll_at,omitempty"`

	// LastResult classifies the last completed poll cycle
	LastResult repository.PollResult `json:"last_result,omitempty"`

	// LastSuccessAt is the timestamp of the last poll that updated the gauges
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`

	// LatestDay is the day currently published by the gauges
	LatestDay string `json:"latest_day,omitempty"`

	// NextPollAt is the timestamp when the next poll is scheduled
	NextPollAt *time.Time `json:"next_poll_at,omitempty"`

	// LastError is the message of the last failed poll (if any)
	LastError string `json:"last_error,omitempty"`

	// LastErrorAt is the timestamp of the last error
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`

	// ConsecutiveFailures counts failed polls since the last success
	ConsecutiveFailures int `json:"consecutive_failures"`
}

// StatusService provides status information about the exporter
type StatusService interface {
	// GetStatus returns a copy of the current status information
	GetStatus() (*StatusInfo, error)

	// SetPollerStarted marks the poller as running for organization
	SetPollerStarted(organization string, startedAt time.Time) error

	// SetPollerStopped clears the poller runtime information
	SetPollerStopped() error

	// RecordPollResult records the outcome of one poll cycle.
	// latestDay is only used for successful cycles and err only for failed ones.
	RecordPollResult(result repository.PollResult, latestDay string, err error, at time.Time) error

	// UpdateNextPoll updates the next poll timestamp
	UpdateNextPoll(nextAt time.Time) error
}
