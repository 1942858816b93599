package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/fuzzy-follow/core/config"
	"example.com/fuzzy-follow/core/report"
	"example.com/fuzzy-follow/core/sim"
)

func records(errs ...float64) []sim.Record {
	rs := make([]sim.Record, len(errs))
	for i, e := range errs {
		rs[i] = sim.Record{Step: i + 1, Time: float64(i+1) * 0.5, Error: e, Rule: 0}
	}
	return rs
}

func TestSummarize(t *testing.T) {
	rs := records(4, -2, 0, 1, -1)
	rs[1].Flags = sim.FlagFallback | sim.FlagSaturated
	rs[2].Flags = sim.FlagSaturated | sim.FlagSpeedLimited
	rs[3].Flags = sim.FlagIntegralSaturated

	s := report.Summarize(rs)
	assert.Equal(t, 5, s.Steps)
	assert.Equal(t, 2.5, s.Duration)
	assert.Equal(t, 4.0, s.InitialError)
	assert.Equal(t, -1.0, s.FinalError)
	assert.Equal(t, 4.0, s.PeakError)
	assert.InDelta(t, math.Sqrt(22.0/5), s.RMSError, 1e-12)
	assert.Equal(t, 0.0, s.MedianError)
	// 4 -> -2 and 1 -> -1; the zero in between does not count.
	assert.Equal(t, 2, s.SignChanges)
	assert.Equal(t, 1, s.Fallbacks)
	assert.Equal(t, 2, s.Saturations)
	assert.Equal(t, 1, s.IntegralSaturations)
	assert.Equal(t, 1, s.SpeedLimited)

	assert.InDelta(t, 1.0, s.P50, 0.01)
	assert.InDelta(t, 4.0, s.P99, 0.01)
	assert.LessOrEqual(t, s.P50, s.P90)
	assert.LessOrEqual(t, s.P90, s.P99)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, report.Summary{}, report.Summarize(nil))
}

func TestErrorHistogramSaturates(t *testing.T) {
	hg := report.ErrorHistogram(records(0.25, 1e12, math.Inf(-1)))
	assert.Equal(t, int64(3), hg.TotalCount())
	assert.InDelta(t, 250, hg.Min(), 1)
}

func TestSummaryFields(t *testing.T) {
	fs := report.Summarize(records(1, 2)).Fields()
	keys := make(map[string]bool, len(fs))
	for _, f := range fs {
		keys[f.Key] = true
	}
	for _, k := range []string{"final_error", "peak_error", "rms_error", "p99_abs_error", "fallbacks"} {
		assert.True(t, keys[k], k)
	}
}

func TestWriteCSV(t *testing.T) {
	f, err := config.Preset("follow")
	require.NoError(t, err)
	f.Simulation.Steps = 25
	s, err := f.BuildSimulator(config.SimulatorOptions{})
	require.NoError(t, err)
	rs, err := s.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteCSV(&buf, rs))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(rs)+1)
	assert.Equal(t, report.Header, rows[0])
	for i, row := range rows[1:] {
		require.Len(t, row, len(report.Header))
		assert.Equal(t, strconv.Itoa(rs[i].Step), row[0])
		e, err := strconv.ParseFloat(row[7], 64)
		require.NoError(t, err)
		assert.Equal(t, rs[i].Error, e)
		assert.Equal(t, rs[i].Flags.String(), row[13])
	}
}
