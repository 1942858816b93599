package fuzzy

import (
	"math"

	"example.com/fuzzy-follow/base/floats"
)

// Universe is the closed interval [Lo, Hi] sampled every Step.
type Universe struct {
	Lo, Hi, Step float64
}

func NewUniverse(lo, hi, step float64) (Universe, error) {
	u := Universe{Lo: lo, Hi: hi, Step: step}
	if err := u.validate(); err != nil {
		return Universe{}, err
	}
	return u, nil
}

func (u Universe) validate() error {
	if math.IsNaN(u.Lo) || math.IsNaN(u.Hi) || math.IsInf(u.Lo, 0) || math.IsInf(u.Hi, 0) {
		return configErrorf("universe bounds must be finite, got [%v, %v]", u.Lo, u.Hi)
	}
	if !(u.Lo < u.Hi) {
		return configErrorf("universe lower bound %v must be below upper bound %v", u.Lo, u.Hi)
	}
	if !(u.Step > 0) {
		return configErrorf("universe resolution must be positive, got %v", u.Step)
	}
	if u.Step > u.Hi-u.Lo {
		return configErrorf("universe resolution %v exceeds its width %v", u.Step, u.Hi-u.Lo)
	}
	return nil
}

// Len returns the number of sample points.
func (u Universe) Len() int {
	return int(math.Round((u.Hi-u.Lo)/u.Step)) + 1
}

// Points returns the sample points in increasing order. The last point is Hi.
func (u Universe) Points() []float64 {
	n := u.Len()
	ps := make([]float64, n)
	for i := 0; i != n; i++ {
		ps[i] = u.Lo + float64(i)*u.Step
	}
	// the last sample snaps to Hi when (Hi-Lo)/Step is not integral
	ps[n-1] = u.Hi
	return ps
}

// Clamp maps x onto the universe bounds.
func (u Universe) Clamp(x float64) float64 {
	return floats.Clamp(x, u.Lo, u.Hi)
}

func (u Universe) Contains(x float64) bool {
	return u.Lo <= x && x <= u.Hi
}
