package presenter

import (
	"encoding/json"
	"io"

	dto "github.com/prometheus/client_model/go"

	usecase "github.com/ca-srg/copilot-exporter/usecase/interface"
)

// JSONPresenterImpl prints the poll outcome as a single JSON document
type JSONPresenterImpl struct {
	encoder *json.Encoder
}

// NewJSONPresenter creates a new JSON presenter
func NewJSONPresenter(w io.Writer) *JSONPresenterImpl {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return &JSONPresenterImpl{
		encoder: encoder,
	}
}

type sampleJSON struct {
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// PrintPoll prints the status and the gauges keyed by metric name
func (p *JSONPresenterImpl) PrintPoll(status *usecase.StatusInfo, families []*dto.MetricFamily) error {
	metrics := make(map[string][]sampleJSON, len(families))
	for _, mf := range families {
		samples := make([]sampleJSON, 0, len(mf.GetMetric()))
		for _, m := range mf.GetMetric() {
			sample := sampleJSON{Value: m.GetGauge().GetValue()}
			if len(m.GetLabel()) > 0 {
				sample.Labels = make(map[string]string, len(m.GetLabel()))
				for _, lp := range m.GetLabel() {
					sample.Labels[lp.GetName()] = lp.GetValue()
				}
			}
			samples = append(samples, sample)
		}
		metrics[mf.GetName()] = samples
	}

	data := map[string]interface{}{
		"status":  status,
		"metrics": metrics,
	}
	return p.encoder.Encode(data)
}
