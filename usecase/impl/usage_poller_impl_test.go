package impl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/domain/entity"
	"github.com/ca-srg/copilot-exporter/domain/repository"
	"github.com/ca-srg/copilot-exporter/infrastructure/config"
	infraRepo "github.com/ca-srg/copilot-exporter/infrastructure/repository"
)

// Mock implementations

// mockLogger is a test logger that does nothing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...domain.Field)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...domain.Field)  {}
func (m *mockLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {}
func (m *mockLogger) WithFields(fields ...domain.Field) domain.Logger               { return m }

type mockUsageRepository struct {
	mock.Mock
	calls int32
}

func (m *mockUsageRepository) GetDailyUsage(ctx context.Context) ([]entity.DailyUsageRecord, error) {
	atomic.AddInt32(&m.calls, 1)
	args := m.Called(ctx)
	records, _ := args.Get(0).([]entity.DailyUsageRecord)
	return records, args.Error(1)
}

func (m *mockUsageRepository) Organization() string {
	return "acme"
}

func (m *mockUsageRepository) callCount() int32 {
	return atomic.LoadInt32(&m.calls)
}

type mockPusher struct {
	mock.Mock
}

func (m *mockPusher) Push(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPusher) Close() error {
	return nil
}

// recordingMetricsRepository keeps every applied record and poll result
type recordingMetricsRepository struct {
	mu       sync.Mutex
	applied  []*entity.DailyUsageRecord
	results  []repository.PollResult
	applyErr error
}

func (r *recordingMetricsRepository) ApplyDailyUsage(record *entity.DailyUsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return r.applyErr
	}
	r.applied = append(r.applied, record)
	return nil
}

func (r *recordingMetricsRepository) RecordPollResult(result repository.PollResult, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordingMetricsRepository) snapshot() ([]*entity.DailyUsageRecord, []repository.PollResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.DailyUsageRecord(nil), r.applied...), append([]repository.PollResult(nil), r.results...)
}

func newTestPoller(usageRepo *mockUsageRepository, pusher repository.MetricsPusher, intervalSec int) (*UsagePollerImpl, *recordingMetricsRepository) {
	metrics := &recordingMetricsRepository{}
	poller := NewUsagePollerImpl(
		usageRepo,
		metrics,
		pusher,
		NewStatusService(),
		&config.PollerConfig{IntervalSec: intervalSec},
		&mockLogger{},
	).(*UsagePollerImpl)
	return poller, metrics
}

func TestUsagePollerImpl_PollOnce_Success(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	usageRepo.On("GetDailyUsage", mock.Anything).Return([]entity.DailyUsageRecord{
		{Day: "2024-06-23", TotalActiveUsers: 1},
		{Day: "2024-06-24", TotalActiveUsers: 2},
		{Day: "2024-06-22", TotalActiveUsers: 3},
	}, nil)

	pusher := &mockPusher{}
	pusher.On("Push", mock.Anything).Return(nil).Once()

	poller, metrics := newTestPoller(usageRepo, pusher, 60)

	require.NoError(t, poller.PollOnce(context.Background()))

	applied, results := metrics.snapshot()
	require.Len(t, applied, 1)
	assert.Equal(t, "2024-06-24", applied[0].Day)
	assert.Equal(t, int64(2), applied[0].TotalActiveUsers)
	assert.Equal(t, []repository.PollResult{repository.PollResultSuccess}, results)

	status, err := poller.statusService.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-24", status.LatestDay)
	assert.Equal(t, repository.PollResultSuccess, status.LastResult)
	assert.NotNil(t, status.LastSuccessAt)

	pusher.AssertExpectations(t)
	usageRepo.AssertExpectations(t)
}

func TestUsagePollerImpl_PollOnce_TieLastOccurrenceWins(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	usageRepo.On("GetDailyUsage", mock.Anything).Return([]entity.DailyUsageRecord{
		{Day: "2024-06-24", TotalChatTurns: 1},
		{Day: "2024-06-24", TotalChatTurns: 9},
	}, nil)

	poller, metrics := newTestPoller(usageRepo, nil, 60)

	require.NoError(t, poller.PollOnce(context.Background()))

	applied, _ := metrics.snapshot()
	require.Len(t, applied, 1)
	assert.Equal(t, int64(9), applied[0].TotalChatTurns)
}

func TestUsagePollerImpl_PollOnce_Failures(t *testing.T) {
	tests := []struct {
		name       string
		records    []entity.DailyUsageRecord
		err        error
		wantCode   domain.ErrorCode
		wantResult repository.PollResult
		failures   int
	}{
		{
			name:       "empty list",
			records:    []entity.DailyUsageRecord{},
			wantCode:   domain.ErrCodeNoDataAvailable,
			wantResult: repository.PollResultEmpty,
			failures:   0,
		},
		{
			name:       "null list",
			records:    nil,
			wantCode:   domain.ErrCodeNoDataAvailable,
			wantResult: repository.PollResultEmpty,
			failures:   0,
		},
		{
			name:       "unauthorized",
			err:        domain.ErrGitHubAPI("/orgs/acme/copilot/usage", 401, `{"message":"Bad credentials"}`),
			wantCode:   domain.ErrCodeGitHubAPI,
			wantResult: repository.PollResultHTTPError,
			failures:   1,
		},
		{
			name:       "transport failure",
			err:        domain.ErrGitHubAPIWithCause("execute request", errors.New("connection refused")),
			wantCode:   domain.ErrCodeGitHubAPI,
			wantResult: repository.PollResultTransportError,
			failures:   1,
		},
		{
			name:       "malformed body",
			err:        domain.ErrDecode("copilot usage response", errors.New("unexpected EOF")),
			wantCode:   domain.ErrCodeDecode,
			wantResult: repository.PollResultDecodeError,
			failures:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usageRepo := &mockUsageRepository{}
			usageRepo.On("GetDailyUsage", mock.Anything).Return(tt.records, tt.err)

			pusher := &mockPusher{}
			poller, metrics := newTestPoller(usageRepo, pusher, 60)

			err := poller.PollOnce(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.GetErrorCode(err))

			applied, results := metrics.snapshot()
			assert.Empty(t, applied, "gauges must not be touched")
			assert.Equal(t, []repository.PollResult{tt.wantResult}, results)

			status, _ := poller.statusService.GetStatus()
			assert.Equal(t, tt.failures, status.ConsecutiveFailures)
			assert.Empty(t, status.LatestDay)

			pusher.AssertNotCalled(t, "Push", mock.Anything)
		})
	}
}

func TestUsagePollerImpl_PollOnce_ApplyFailure(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	usageRepo.On("GetDailyUsage", mock.Anything).Return([]entity.DailyUsageRecord{{Day: "2024-06-24"}}, nil)

	pusher := &mockPusher{}
	poller, metrics := newTestPoller(usageRepo, pusher, 60)
	metrics.applyErr = domain.ErrMetrics("apply daily usage", "record is nil")

	err := poller.PollOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeMetrics, domain.GetErrorCode(err))

	_, results := metrics.snapshot()
	assert.Equal(t, []repository.PollResult{repository.PollResultMetricsError}, results)

	status, _ := poller.statusService.GetStatus()
	assert.Equal(t, repository.PollResultMetricsError, status.LastResult)
	assert.Equal(t, 1, status.ConsecutiveFailures)

	pusher.AssertNotCalled(t, "Push", mock.Anything)
}

func TestUsagePollerImpl_PollOnce_PushFailureIsNotFatal(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	usageRepo.On("GetDailyUsage", mock.Anything).Return([]entity.DailyUsageRecord{{Day: "2024-06-24"}}, nil)

	pusher := &mockPusher{}
	pusher.On("Push", mock.Anything).Return(domain.ErrMetrics("remote write", "status 503"))

	poller, metrics := newTestPoller(usageRepo, pusher, 60)

	assert.NoError(t, poller.PollOnce(context.Background()))
	applied, _ := metrics.snapshot()
	assert.Len(t, applied, 1)
}

func TestUsagePollerImpl_PollOnce_CancelledContext(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	poller, metrics := newTestPoller(usageRepo, nil, 60)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := poller.PollOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), usageRepo.callCount())

	_, results := metrics.snapshot()
	assert.Empty(t, results)
}

func TestUsagePollerImpl_Run_FailureThenSuccess(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	usageRepo.On("GetDailyUsage", mock.Anything).
		Return(nil, domain.ErrGitHubAPI("/orgs/acme/copilot/usage", 500, "oops")).Once()
	usageRepo.On("GetDailyUsage", mock.Anything).
		Return([]entity.DailyUsageRecord{{Day: "2024-06-24", TotalActiveUsers: 4}}, nil)

	poller, metrics := newTestPoller(usageRepo, nil, 60)
	poller.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		applied, _ := metrics.snapshot()
		return len(applied) > 0
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	_, results := metrics.snapshot()
	require.GreaterOrEqual(t, len(results), 2)
	assert.Equal(t, repository.PollResultHTTPError, results[0])
	assert.Equal(t, repository.PollResultSuccess, results[1])
}

func TestUsagePollerImpl_Run_CancelDuringIdleSleep(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	usageRepo.On("GetDailyUsage", mock.Anything).Return([]entity.DailyUsageRecord{{Day: "2024-06-24"}}, nil)

	// 12h interval: only the immediate first poll may happen
	poller, _ := newTestPoller(usageRepo, nil, config.DefaultPollIntervalSec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool { return usageRepo.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// poller is now sleeping
	require.Eventually(t, func() bool {
		status, _ := poller.statusService.GetStatus()
		return status.NextPollAt != nil
	}, 2*time.Second, 5*time.Millisecond)

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not wake up on cancellation")
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), usageRepo.callCount(), "no further requests after cancellation")

	status, _ := poller.statusService.GetStatus()
	assert.False(t, status.IsRunning)
	assert.Nil(t, status.NextPollAt)
}

func TestUsagePollerImpl_Run_CancelDuringRequest(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	usageRepo.On("GetDailyUsage", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, domain.ErrGitHubAPIWithCause("execute request", context.Canceled))

	poller, metrics := newTestPoller(usageRepo, nil, 60)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool { return usageRepo.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	_, results := metrics.snapshot()
	assert.Empty(t, results, "an aborted request is not a failed poll")
	assert.Equal(t, int32(1), usageRepo.callCount())
}

func TestUsagePollerImpl_Run_AlreadyRunning(t *testing.T) {
	usageRepo := &mockUsageRepository{}
	usageRepo.On("GetDailyUsage", mock.Anything).Return([]entity.DailyUsageRecord{{Day: "2024-06-24"}}, nil)
	poller, _ := newTestPoller(usageRepo, nil, 60)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()
	require.Eventually(t, func() bool { return usageRepo.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	err := poller.Run(ctx)
	assert.True(t, domain.IsErrorCode(err, domain.ErrCodeInvalidState))

	cancel()
	assert.NoError(t, <-done)
}

func TestNewUsagePollerImpl_DefaultInterval(t *testing.T) {
	poller := NewUsagePollerImpl(&mockUsageRepository{}, &recordingMetricsRepository{}, nil, NewStatusService(), nil, &mockLogger{}).(*UsagePollerImpl)

	assert.Equal(t, 12*time.Hour, poller.interval)
}

func TestClassifyPollError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want repository.PollResult
	}{
		{name: "http status", err: domain.ErrGitHubAPI("x", 404, ""), want: repository.PollResultHTTPError},
		{name: "transport", err: domain.ErrGitHubAPIWithCause("x", errors.New("eof")), want: repository.PollResultTransportError},
		{name: "decode", err: domain.ErrDecode("x", errors.New("bad")), want: repository.PollResultDecodeError},
		{name: "metrics", err: domain.ErrMetrics("apply daily usage", "record is nil"), want: repository.PollResultMetricsError},
		{name: "empty", err: domain.ErrNoDataAvailable("x", "acme"), want: repository.PollResultEmpty},
		{name: "unknown", err: errors.New("boom"), want: repository.PollResultTransportError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyPollError(tt.err))
		})
	}
}

func TestUsagePollerImpl_EndToEnd(t *testing.T) {
	var (
		mu     sync.Mutex
		status = http.StatusOK
		body   = `[
  {"day":"2024-01-01","total_suggestions_count":10,"breakdown":[]},
  {"day":"2024-01-02","total_suggestions_count":20,"breakdown":[
    {"language":"python","editor":"vscode","suggestions_count":5,"acceptances_count":2,"lines_suggested":50,"lines_accepted":20,"active_users":3}
  ]}
]`
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	respond := func(code int, payload string) {
		mu.Lock()
		defer mu.Unlock()
		status, body = code, payload
	}

	gauges := infraRepo.NewPrometheusGaugeRegistry()
	usageRepo := infraRepo.NewGitHubCopilotAPIRepository(server.URL, "acme", "ghp_test", 5*time.Second)
	poller := NewUsagePollerImpl(usageRepo, gauges, nil, NewStatusService(), nil, &mockLogger{})

	expected := `
# HELP github_copilot_total_suggestions_count Total number of Copilot suggestions.
# TYPE github_copilot_total_suggestions_count gauge
github_copilot_total_suggestions_count 20
# HELP github_copilot_suggestions_count_by_language_editor Suggestions count by language and editor
# TYPE github_copilot_suggestions_count_by_language_editor gauge
github_copilot_suggestions_count_by_language_editor{editor="vscode",language="python"} 5
`
	names := []string{
		"github_copilot_total_suggestions_count",
		"github_copilot_suggestions_count_by_language_editor",
	}

	require.NoError(t, poller.PollOnce(context.Background()))
	require.NoError(t, testutil.GatherAndCompare(gauges.Registry(), strings.NewReader(expected), names...))

	// Failed and empty cycles leave every gauge unchanged
	for _, tc := range []struct {
		code    int
		payload string
	}{
		{code: http.StatusInternalServerError, payload: `{"message":"Server Error"}`},
		{code: http.StatusOK, payload: `[{"day":"2024-01-03","total_suggestions_count":"many"}]`},
		{code: http.StatusOK, payload: `[{"day":"2024-01-03","total_suggestions_count":99}] <html>not json</html>`},
		{code: http.StatusOK, payload: `[]`},
		{code: http.StatusOK, payload: `[null]`},
	} {
		respond(tc.code, tc.payload)
		assert.Error(t, poller.PollOnce(context.Background()), tc.payload)
		assert.NoError(t, testutil.GatherAndCompare(gauges.Registry(), strings.NewReader(expected), names...))
	}
}
