package repository

import (
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"
)

// Label is a single name/value pair of a remote write series
type Label struct {
	Name  string
	Value string
}

// Sample is a single value at a millisecond timestamp
type Sample struct {
	Value     float64
	Timestamp int64
}

// TimeSeries is one labelled series of a WriteRequest
type TimeSeries struct {
	Labels  []Label
	Samples []Sample
}

// Field numbers of prometheus.WriteRequest (remote.proto, types.proto)
const (
	writeRequestTimeseries protowire.Number = 1

	timeSeriesLabels  protowire.Number = 1
	timeSeriesSamples protowire.Number = 2

	labelName  protowire.Number = 1
	labelValue protowire.Number = 2

	sampleValue     protowire.Number = 1
	sampleTimestamp protowire.Number = 2
)

// encodeWriteRequest encodes series as a prometheus.WriteRequest message.
// Labels are sorted by name as receivers require.
func encodeWriteRequest(series []TimeSeries) []byte {
	var b []byte
	for _, ts := range series {
		b = protowire.AppendTag(b, writeRequestTimeseries, protowire.BytesType)
		b = protowire.AppendBytes(b, appendTimeSeries(nil, ts))
	}
	return b
}

func appendTimeSeries(b []byte, ts TimeSeries) []byte {
	labels := make([]Label, len(ts.Labels))
	copy(labels, ts.Labels)
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

	for _, l := range labels {
		var lb []byte
		lb = protowire.AppendTag(lb, labelName, protowire.BytesType)
		lb = protowire.AppendString(lb, l.Name)
		lb = protowire.AppendTag(lb, labelValue, protowire.BytesType)
		lb = protowire.AppendString(lb, l.Value)

		b = protowire.AppendTag(b, timeSeriesLabels, protowire.BytesType)
		b = protowire.AppendBytes(b, lb)
	}

	for _, s := range ts.Samples {
		var sb []byte
		sb = protowire.AppendTag(sb, sampleValue, protowire.Fixed64Type)
		sb = protowire.AppendFixed64(sb, math.Float64bits(s.Value))
		sb = protowire.AppendTag(sb, sampleTimestamp, protowire.VarintType)
		sb = protowire.AppendVarint(sb, uint64(s.Timestamp))

		b = protowire.AppendTag(b, timeSeriesSamples, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}

	return b
}
