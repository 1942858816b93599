package fuzzy

import (
	"fmt"
	"math"
)

// MembershipFunction maps a crisp value to a degree of truth in [0, 1].
// The only implementations are Triangle and Trapezoid.
type MembershipFunction interface {
	Degree(x float64) float64
	Knots() []float64
	fmt.Stringer
	validate() error
}

type Triangle struct {
	A, B, C float64
}

type Trapezoid struct {
	A, B, C, D float64
}

var (
	_ MembershipFunction = Triangle{}
	_ MembershipFunction = Trapezoid{}
)

func (t Triangle) Degree(x float64) float64 {
	return trapezoidalMF(x, t.A, t.B, t.B, t.C)
}

func (t Triangle) Knots() []float64 { return []float64{t.A, t.B, t.C} }

func (t Triangle) String() string {
	return fmt.Sprintf("trimf[%g %g %g]", t.A, t.B, t.C)
}

func (t Triangle) validate() error {
	return validateKnots(t.Knots())
}

func (t Trapezoid) Degree(x float64) float64 {
	return trapezoidalMF(x, t.A, t.B, t.C, t.D)
}

func (t Trapezoid) Knots() []float64 { return []float64{t.A, t.B, t.C, t.D} }

func (t Trapezoid) String() string {
	return fmt.Sprintf("trapmf[%g %g %g %g]", t.A, t.B, t.C, t.D)
}

func (t Trapezoid) validate() error {
	return validateKnots(t.Knots())
}

// trapezoidalMF rises on [a, b), is 1 on [b, c] and falls on (c, d].
// A zero-width edge is a step, so the shoulder knots of Trapezoid{0, 0, 10, 30}
// and Trapezoid{70, 90, 100, 100} evaluate to 1.
func trapezoidalMF(x, a, b, c, d float64) float64 {
	if x < a || x > d {
		return 0
	}
	if b <= x && x <= c {
		return 1
	}
	if x < b {
		return (x - a) / (b - a)
	}
	return (d - x) / (d - c)
}

func validateKnots(ks []float64) error {
	for i, k := range ks {
		if math.IsNaN(k) || math.IsInf(k, 0) {
			return configErrorf("knot %d is not finite: %v", i, k)
		}
		if i > 0 && ks[i-1] > k {
			return configErrorf("knots must be non-decreasing, got %v", ks)
		}
	}
	return nil
}
