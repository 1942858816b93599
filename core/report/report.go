// Package report summarizes and exports simulation telemetry.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"

	"example.com/fuzzy-follow/base/floats"
	"example.com/fuzzy-follow/core/sim"
)

// Absolute errors are recorded in thousandths, up to 1e6 distance units.
const (
	errorScale   = 1000
	errorMaxHist = 1_000_000 * errorScale
	errorSigFigs = 3
)

type Summary struct {
	Steps    int
	Duration float64

	InitialError float64
	FinalError   float64
	PeakError    float64
	RMSError     float64
	MedianError  float64
	// SignChanges counts zero crossings of the error, i.e. overshoots.
	SignChanges int

	P50, P90, P99 float64

	Fallbacks           int
	Saturations         int
	IntegralSaturations int
	SpeedLimited        int
}

// ErrorHistogram records the absolute distance error of every step.
func ErrorHistogram(rs []sim.Record) *hdrhistogram.Histogram {
	hg := hdrhistogram.New(1, errorMaxHist, errorSigFigs)
	for _, r := range rs {
		v := int64(math.Round(math.Abs(r.Error) * errorScale))
		if v > errorMaxHist || v < 0 {
			v = errorMaxHist
		}
		if err := hg.RecordValue(v); err != nil {
			panic("unexpected histogram range")
		}
	}
	return hg
}

func Summarize(rs []sim.Record) Summary {
	var s Summary
	if len(rs) == 0 {
		return s
	}
	errs := make([]float64, len(rs))
	for i, r := range rs {
		errs[i] = r.Error
		if r.Flags.Has(sim.FlagFallback) {
			s.Fallbacks++
		}
		if r.Flags.Has(sim.FlagSaturated) {
			s.Saturations++
		}
		if r.Flags.Has(sim.FlagIntegralSaturated) {
			s.IntegralSaturations++
		}
		if r.Flags.Has(sim.FlagSpeedLimited) {
			s.SpeedLimited++
		}
		if i > 0 {
			p, q := floats.Sgn(rs[i-1].Error), floats.Sgn(r.Error)
			if p != 0 && q != 0 && p != q {
				s.SignChanges++
			}
		}
	}
	s.Steps = len(rs)
	s.Duration = rs[len(rs)-1].Time
	s.InitialError = rs[0].Error
	s.FinalError = rs[len(rs)-1].Error
	s.PeakError = floats.MaxAbs(errs)
	s.RMSError = floats.RMS(errs)
	s.MedianError = floats.Median(errs)

	hg := ErrorHistogram(rs)
	s.P50 = float64(hg.ValueAtQuantile(50)) / errorScale
	s.P90 = float64(hg.ValueAtQuantile(90)) / errorScale
	s.P99 = float64(hg.ValueAtQuantile(99)) / errorScale
	return s
}

// Fields renders the summary for structured logging.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("steps", s.Steps),
		zap.Float64("duration", s.Duration),
		zap.Float64("initial_error", s.InitialError),
		zap.Float64("final_error", s.FinalError),
		zap.Float64("peak_error", s.PeakError),
		zap.Float64("rms_error", s.RMSError),
		zap.Float64("median_error", s.MedianError),
		zap.Int("sign_changes", s.SignChanges),
		zap.Float64("p50_abs_error", s.P50),
		zap.Float64("p90_abs_error", s.P90),
		zap.Float64("p99_abs_error", s.P99),
		zap.Int("fallbacks", s.Fallbacks),
		zap.Int("saturations", s.Saturations),
		zap.Int("integral_saturations", s.IntegralSaturations),
		zap.Int("speed_limited", s.SpeedLimited),
	}
}

// Header is the CSV column row written by WriteCSV.
var Header = []string{
	"step", "time",
	"leader_position", "follower_position",
	"leader_velocity", "follower_velocity",
	"distance", "error", "delta",
	"fuzzy_output", "integral_term", "control_output",
	"rule", "flags",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// WriteCSV writes one row per record, preceded by Header.
func WriteCSV(w io.Writer, rs []sim.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write telemetry header: %w", err)
	}
	row := make([]string, len(Header))
	for _, r := range rs {
		row[0] = strconv.Itoa(r.Step)
		row[1] = formatFloat(r.Time)
		row[2] = formatFloat(r.LeaderPosition)
		row[3] = formatFloat(r.FollowerPosition)
		row[4] = formatFloat(r.LeaderVelocity)
		row[5] = formatFloat(r.FollowerVelocity)
		row[6] = formatFloat(r.Distance)
		row[7] = formatFloat(r.Error)
		row[8] = formatFloat(r.Delta)
		row[9] = formatFloat(r.FuzzyOutput)
		row[10] = formatFloat(r.IntegralTerm)
		row[11] = formatFloat(r.ControlOutput)
		row[12] = strconv.Itoa(r.Rule)
		row[13] = r.Flags.String()
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write telemetry record %d: %w", r.Step, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write telemetry: %w", err)
	}
	return nil
}
