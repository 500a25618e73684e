package presenter

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	usecase "github.com/ca-srg/copilot-exporter/usecase/interface"
)

// ConsolePresenterImpl prints gauges in the Prometheus text exposition format
type ConsolePresenterImpl struct {
	writer io.Writer
}

// NewConsolePresenter creates a new console presenter
func NewConsolePresenter(w io.Writer) *ConsolePresenterImpl {
	return &ConsolePresenterImpl{
		writer: w,
	}
}

// PrintPoll prints a comment header followed by every usage family.
// The output stays a valid exposition document.
func (p *ConsolePresenterImpl) PrintPoll(status *usecase.StatusInfo, families []*dto.MetricFamily) error {
	if status != nil {
		_, _ = fmt.Fprintf(p.writer, "# organization: %s\n", status.Organization)
		_, _ = fmt.Fprintf(p.writer, "# day: %s\n", status.LatestDay)
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(p.writer, mf); err != nil {
			return fmt.Errorf("failed to write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
