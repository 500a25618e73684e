package impl

import (
	"sync"
	"time"

	"github.com/ca-srg/copilot-exporter/domain/repository"
	usecase "github.com/ca-srg/copilot-exporter/usecase/interface"
)

// StatusServiceImpl implements StatusService
type StatusServiceImpl struct {
	mu     sync.RWMutex
	status *usecase.StatusInfo
}

// NewStatusService creates a new instance of StatusService
func NewStatusService() usecase.StatusService {
	return &StatusServiceImpl{
		status: &usecase.StatusInfo{
			IsRunning: false,
		},
	}
}

// GetStatus returns the current status information
func (s *StatusServiceImpl) GetStatus() (*usecase.StatusInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a copy to avoid concurrent modification
	statusCopy := *s.status
	return &statusCopy, nil
}

// SetPollerStarted sets the poller started timestamp
func (s *StatusServiceImpl) SetPollerStarted(organization string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.IsRunning = true
	s.status.Organization = organization
	s.status.StartedAt = &startedAt
	return nil
}

// SetPollerStopped clears the poller runtime information
func (s *StatusServiceImpl) SetPollerStopped() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.IsRunning = false
	s.status.StartedAt = nil
	s.status.NextPollAt = nil
	return nil
}

// RecordPollResult records the outcome of a poll cycle
func (s *StatusServiceImpl) RecordPollResult(result repository.PollResult, latestDay string, err error, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastPollAt = &at
	s.status.LastResult = result

	switch result {
	case repository.PollResultSuccess:
		s.status.LastSuccessAt = &at
		s.status.LatestDay = latestDay
		s.status.ConsecutiveFailures = 0
		s.status.LastError = ""
		s.status.LastErrorAt = nil
	case repository.PollResultEmpty:
		// An empty response is not a failure; the published day is unchanged
	default:
		s.status.ConsecutiveFailures++
		if err != nil {
			s.status.LastError = err.Error()
		}
		s.status.LastErrorAt = &at
	}
	return nil
}

// UpdateNextPoll updates the next poll timestamp
func (s *StatusServiceImpl) UpdateNextPoll(nextAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.NextPollAt = &nextAt
	return nil
}
