package repository

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/ca-srg/copilot-exporter/domain"
	"github.com/ca-srg/copilot-exporter/domain/entity"
	"github.com/ca-srg/copilot-exporter/domain/repository"
)

const (
	// UsageMetricPrefix is shared by every published usage gauge
	UsageMetricPrefix = "github_copilot_"

	// ExporterMetricPrefix is shared by the exporter's own bookkeeping metrics
	ExporterMetricPrefix = "github_copilot_exporter_"
)

var languageEditorLabels = []string{"language", "editor"}

// PrometheusGaugeRegistry implements UsageMetricsRepository on an owned Prometheus registry
type PrometheusGaugeRegistry struct {
	registry *prometheus.Registry

	totalSuggestionsCount prometheus.Gauge
	totalAcceptancesCount prometheus.Gauge
	totalLinesSuggested   prometheus.Gauge
	totalLinesAccepted    prometheus.Gauge
	totalActiveUsers      prometheus.Gauge
	totalChatAcceptances  prometheus.Gauge
	totalChatTurns        prometheus.Gauge
	totalActiveChatUsers  prometheus.Gauge

	suggestionsCountByLanguageEditor *prometheus.GaugeVec
	acceptancesCountByLanguageEditor *prometheus.GaugeVec
	linesSuggestedByLanguageEditor   *prometheus.GaugeVec
	linesAcceptedByLanguageEditor    *prometheus.GaugeVec
	activeUsersByLanguageEditor      *prometheus.GaugeVec

	pollsTotal         *prometheus.CounterVec
	lastSuccessTime    prometheus.Gauge
	latestDayTimestamp prometheus.Gauge
}

// NewPrometheusGaugeRegistry creates the registry and registers every gauge.
// Go runtime and process collectors are included like a default registry would.
func NewPrometheusGaugeRegistry() *PrometheusGaugeRegistry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newPrometheusGaugeRegistry(reg)
}

func newPrometheusGaugeRegistry(reg *prometheus.Registry) *PrometheusGaugeRegistry {
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}
	gaugeVec := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, languageEditorLabels)
	}

	r := &PrometheusGaugeRegistry{
		registry: reg,

		totalSuggestionsCount: gauge("github_copilot_total_suggestions_count", "Total number of Copilot suggestions."),
		totalAcceptancesCount: gauge("github_copilot_total_acceptances_count", "Total number of Copilot acceptances."),
		totalLinesSuggested:   gauge("github_copilot_total_lines_suggested", "Total number of lines suggested by Copilot."),
		totalLinesAccepted:    gauge("github_copilot_total_lines_accepted", "Total number of lines accepted by Copilot."),
		totalActiveUsers:      gauge("github_copilot_total_active_users", "Total number of active users."),
		totalChatAcceptances:  gauge("github_copilot_total_chat_acceptances", "Total number of chat acceptances."),
		totalChatTurns:        gauge("github_copilot_total_chat_turns", "Total number of chat turns."),
		totalActiveChatUsers:  gauge("github_copilot_total_active_chat_users", "Total number of active chat users."),

		suggestionsCountByLanguageEditor: gaugeVec("github_copilot_suggestions_count_by_language_editor", "Suggestions count by language and editor"),
		acceptancesCountByLanguageEditor: gaugeVec("github_copilot_acceptances_count_by_language_editor", "Acceptances count by language and editor"),
		linesSuggestedByLanguageEditor:   gaugeVec("github_copilot_lines_suggested_by_language_editor", "Lines suggested by language and editor"),
		linesAcceptedByLanguageEditor:    gaugeVec("github_copilot_lines_accepted_by_language_editor", "Lines accepted by language and editor"),
		activeUsersByLanguageEditor:      gaugeVec("github_copilot_active_users_by_language_editor", "Active users by language and editor"),

		pollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "github_copilot_exporter_polls_total",
			Help: "Number of usage poll cycles by result.",
		}, []string{"result"}),
		lastSuccessTime: gauge("github_copilot_exporter_last_success_timestamp_seconds",
			"Unix time of the last poll that updated the usage gauges."),
		latestDayTimestamp: gauge("github_copilot_exporter_latest_day_timestamp_seconds",
			"Unix time (UTC midnight) of the day currently published by the usage gauges."),
	}

	// Expose every result with a zero value from the start
	for _, result := range repository.PollResults() {
		r.pollsTotal.WithLabelValues(string(result))
	}

	return r
}

// Registry returns the owned registry for exposition and remote write
func (r *PrometheusGaugeRegistry) Registry() *prometheus.Registry {
	return r.registry
}

// ApplyDailyUsage sets the scalar gauges and then the labelled gauges of every breakdown entry
func (r *PrometheusGaugeRegistry) ApplyDailyUsage(record *entity.DailyUsageRecord) error {
	if record == nil {
		return domain.ErrMetrics("apply daily usage", "record is nil")
	}

	r.totalSuggestionsCount.Set(float64(record.TotalSuggestionsCount))
	r.totalAcceptancesCount.Set(float64(record.TotalAcceptancesCount))
	r.totalLinesSuggested.Set(float64(record.TotalLinesSuggested))
	r.totalLinesAccepted.Set(float64(record.TotalLinesAccepted))
	r.totalActiveUsers.Set(float64(record.TotalActiveUsers))
	r.totalChatAcceptances.Set(float64(record.TotalChatAcceptances))
	r.totalChatTurns.Set(float64(record.TotalChatTurns))
	r.totalActiveChatUsers.Set(float64(record.TotalActiveChatUsers))

	// Duplicate (language, editor) pairs: the later entry overwrites
	for _, b := range record.Breakdown {
		r.suggestionsCountByLanguageEditor.WithLabelValues(b.Language, b.Editor).Set(float64(b.SuggestionsCount))
		r.acceptancesCountByLanguageEditor.WithLabelValues(b.Language, b.Editor).Set(float64(b.AcceptancesCount))
		r.linesSuggestedByLanguageEditor.WithLabelValues(b.Language, b.Editor).Set(float64(b.LinesSuggested))
		r.linesAcceptedByLanguageEditor.WithLabelValues(b.Language, b.Editor).Set(float64(b.LinesAccepted))
		r.activeUsersByLanguageEditor.WithLabelValues(b.Language, b.Editor).Set(float64(b.ActiveUsers))
	}

	if day, err := record.DayTime(); err == nil {
		r.latestDayTimestamp.Set(float64(day.Unix()))
	}

	return nil
}

// RecordPollResult counts the cycle and stamps the last success time
func (r *PrometheusGaugeRegistry) RecordPollResult(result repository.PollResult, at time.Time) {
	r.pollsTotal.WithLabelValues(string(result)).Inc()
	if result == repository.PollResultSuccess {
		r.lastSuccessTime.Set(float64(at.Unix()))
	}
}

// UsageFamilies gathers the published usage gauges, leaving out runtime and exporter metrics
func (r *PrometheusGaugeRegistry) UsageFamilies() ([]*dto.MetricFamily, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, domain.ErrMetricsWithCause("gather usage gauges", err)
	}

	usage := families[:0]
	for _, mf := range families {
		if isUsageFamily(mf) {
			usage = append(usage, mf)
		}
	}
	return usage, nil
}

// isUsageFamily reports whether mf is one of the published usage gauges
func isUsageFamily(mf *dto.MetricFamily) bool {
	name := mf.GetName()
	return mf.GetType() == dto.MetricType_GAUGE &&
		strings.HasPrefix(name, UsageMetricPrefix) &&
		!strings.HasPrefix(name, ExporterMetricPrefix)
}
