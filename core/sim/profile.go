package sim

import (
	"fmt"
	"math"
	"slices"
)

// Profile is the leader's exogenous velocity as a function of time.
type Profile interface {
	VelocityAt(t float64) float64
}

// ProfileFunc adapts a function to Profile, e.g. for an external driver that
// samples a slider.
type ProfileFunc func(t float64) float64

func (f ProfileFunc) VelocityAt(t float64) float64 { return f(t) }

// Segment switches the leader to Velocity from time At on.
type Segment struct {
	At       float64
	Velocity float64
}

// StepProfile is a piecewise-constant velocity profile: Initial until the
// first segment, then each segment's velocity from its start time. Segments
// must be sorted by At; NewStepProfile sorts them.
type StepProfile struct {
	Initial  float64
	Segments []Segment
}

func NewStepProfile(initial float64, segments ...Segment) (StepProfile, error) {
	if !finite(initial) {
		return StepProfile{}, fmt.Errorf("%w: initial leader velocity must be finite, got %v", ErrConfig, initial)
	}
	segs := slices.Clone(segments)
	for i, s := range segs {
		if !finite(s.At, s.Velocity) || s.At < 0 {
			return StepProfile{}, fmt.Errorf("%w: leader segment %d is invalid: %+v", ErrConfig, i, s)
		}
	}
	slices.SortStableFunc(segs, func(a, b Segment) int {
		switch {
		case a.At < b.At:
			return -1
		case a.At > b.At:
			return 1
		default:
			return 0
		}
	})
	return StepProfile{Initial: initial, Segments: segs}, nil
}

func (p StepProfile) VelocityAt(t float64) float64 {
	v := p.Initial
	for _, s := range p.Segments {
		if t < s.At {
			break
		}
		v = s.Velocity
	}
	return v
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
