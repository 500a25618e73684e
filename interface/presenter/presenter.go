package presenter

import (
	dto "github.com/prometheus/client_model/go"

	usecase "github.com/ca-srg/copilot-exporter/usecase/interface"
)

// PollPresenter renders the outcome of a single poll
type PollPresenter interface {
	// PrintPoll prints the poller status and the published usage gauges
	PrintPoll(status *usecase.StatusInfo, families []*dto.MetricFamily) error
}
