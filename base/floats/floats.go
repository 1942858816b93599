package floats

import (
	"math"
	"slices"
)

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if lo > hi {
		panic("unexpected clamp bounds")
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamped is like Clamp but also reports whether x was outside [lo, hi].
func Clamped(x, lo, hi float64) (float64, bool) {
	y := Clamp(x, lo, hi)
	return y, y != x
}

func Sgn(x float64) float64 {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	default:
		return 0
	}
}

func midpoint(x, y float64) float64 {
	return x + (y-x)/2.0
}

// Median returns the median of fs without reordering fs.
func Median(fs []float64) float64 {
	n := len(fs)
	if n == 0 {
		panic("unexpected number of values")
	}
	s := slices.Clone(fs)
	slices.Sort(s)
	i := n / 2
	if n%2 != 0 {
		return s[i]
	}
	return midpoint(s[i-1], s[i])
}

// RMS returns the root mean square of fs.
func RMS(fs []float64) float64 {
	n := len(fs)
	if n == 0 {
		panic("unexpected number of values")
	}
	var sum float64
	for _, f := range fs {
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}

// MaxAbs returns the largest magnitude in fs.
func MaxAbs(fs []float64) float64 {
	var m float64
	for _, f := range fs {
		m = math.Max(m, math.Abs(f))
	}
	return m
}
