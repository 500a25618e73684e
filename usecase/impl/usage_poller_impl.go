package impl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/domain/entity"
	"github.com/ca-srg/copilot-exporter/domain/repository"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
	usecase "github.com/ca-srg/copilot-exporter/usecase/interface"
)

// UsagePollerImpl implements the UsagePoller interface
type UsagePollerImpl struct {
	usageRepo     repository.CopilotUsageRepository
	metricsRepo   repository.UsageMetricsRepository
	pusher        repository.MetricsPusher
	statusService usecase.StatusService
	interval      time.Duration
	logger        domain.Logger
	now           func() time.Time

	mu        sync.Mutex
	isRunning bool
}

// NewUsagePollerImpl creates a new usage poller implementation.
// pusher may be nil when Remote Write is not configured.
func NewUsagePollerImpl(
	usageRepo repository.CopilotUsageRepository,
	metricsRepo repository.UsageMetricsRepository,
	pusher repository.MetricsPusher,
	statusService usecase.StatusService,
	cfg *config.PollerConfig,
	logger domain.Logger,
) usecase.UsagePoller {
	interval := time.Duration(config.DefaultPollIntervalSec) * time.Second
	if cfg != nil && cfg.IntervalSec > 0 {
		interval = time.Duration(cfg.IntervalSec) * time.Second
	}

	return &UsagePollerImpl{
		usageRepo:     usageRepo,
		metricsRepo:   metricsRepo,
		pusher:        pusher,
		statusService: statusService,
		interval:      interval,
		logger:        logger.WithFields(domain.NewField("organization", usageRepo.Organization())),
		now:           time.Now,
	}
}

// Run polls immediately and then once per interval until ctx is cancelled
func (p *UsagePollerImpl) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return domain.ErrInvalidState("usage poller", "running", "start")
	}
	p.isRunning = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.isRunning = false
		p.mu.Unlock()
	}()

	_ = p.statusService.SetPollerStarted(p.usageRepo.Organization(), p.now())
	defer func() { _ = p.statusService.SetPollerStopped() }()

	p.logger.Info(ctx, "usage poller started", domain.NewField("interval", p.interval.String()))

	for ctx.Err() == nil {
		p.logCycle(ctx, p.PollOnce(ctx))

		_ = p.statusService.UpdateNextPoll(p.now().Add(p.interval))

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	p.logger.Info(context.Background(), "usage poller stopped")
	return nil
}

// PollOnce performs one fetch, select and apply cycle
func (p *UsagePollerImpl) PollOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := p.usageRepo.GetDailyUsage(ctx)
	if err != nil {
		// Shutdown aborted the request; that is not a failed poll
		if ctx.Err() != nil {
			return err
		}
		p.record(classifyPollError(err), "", err)
		return err
	}

	// Selection happens on the fully decoded list so a bad payload never reaches the gauges
	latest, ok := entity.SelectLatestDay(records)
	if !ok {
		err := domain.ErrNoDataAvailable("github copilot usage", p.usageRepo.Organization())
		p.record(repository.PollResultEmpty, "", err)
		return err
	}

	if err := p.metricsRepo.ApplyDailyUsage(latest); err != nil {
		p.record(repository.PollResultMetricsError, "", err)
		return err
	}
	p.record(repository.PollResultSuccess, latest.Day, nil)

	p.logger.Info(ctx, "copilot usage metrics updated",
		domain.NewField("day", latest.Day),
		domain.NewField("records", len(records)),
		domain.NewField("breakdown_entries", len(latest.Breakdown)),
	)

	if p.pusher != nil {
		if err := p.pusher.Push(ctx); err != nil {
			// The pull endpoint already serves the new values
			p.logger.Warn(ctx, "failed to push metrics via remote write", domain.ErrorField(err))
		}
	}

	return nil
}

func (p *UsagePollerImpl) record(result repository.PollResult, latestDay string, err error) {
	at := p.now()
	p.metricsRepo.RecordPollResult(result, at)
	_ = p.statusService.RecordPollResult(result, latestDay, err, at)
}

// logCycle logs a cycle's error at the level its classification deserves
func (p *UsagePollerImpl) logCycle(ctx context.Context, err error) {
	if err == nil || ctx.Err() != nil {
		return
	}

	if domain.IsErrorCode(err, domain.ErrCodeNoDataAvailable) {
		p.logger.Info(ctx, "copilot usage API returned no records; gauges unchanged")
		return
	}

	fields := []domain.Field{
		domain.NewField("result", string(classifyPollError(err))),
		domain.ErrorField(err),
	}
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		if status, ok := domainErr.Details["statusCode"]; ok {
			fields = append(fields,
				domain.NewField("status_code", status),
				domain.NewField("response", domainErr.Details["response"]),
			)
		}
	}

	p.logger.Error(ctx, "error querying GitHub copilot usage API", fields...)
}

// classifyPollError maps a cycle error to its polls_total result label
func classifyPollError(err error) repository.PollResult {
	switch domain.GetErrorCode(err) {
	case domain.ErrCodeNoDataAvailable:
		return repository.PollResultEmpty
	case domain.ErrCodeDecode:
		return repository.PollResultDecodeError
	case domain.ErrCodeMetrics:
		return repository.PollResultMetricsError
	case domain.ErrCodeGitHubAPI:
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) {
			if _, ok := domainErr.Details["statusCode"]; ok {
				return repository.PollResultHTTPError
			}
		}
		return repository.PollResultTransportError
	default:
		return repository.PollResultTransportError
	}
}
