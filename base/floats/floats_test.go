package floats_test

import (
	"math"
	"testing"

	"example.com/fuzzy-follow/base/floats"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		x, lo, hi float64
		want      float64
		clamped   bool
	}{
		{5, 0, 10, 5, false},
		{-1, 0, 10, 0, true},
		{11, 0, 10, 10, true},
		{0, 0, 10, 0, false},
		{10, 0, 10, 10, false},
		{-3.5, -3, 3, -3, true},
		{2, 2, 2, 2, false},
	}

	for _, tt := range tests {
		got, clamped := floats.Clamped(tt.x, tt.lo, tt.hi)
		if got != tt.want || clamped != tt.clamped {
			t.Errorf("Clamped(%v, %v, %v) = (%v, %v), want (%v, %v)",
				tt.x, tt.lo, tt.hi, got, clamped, tt.want, tt.clamped)
		}
	}
}

func TestClampInvalidBounds(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic, got none")
		}
	}()
	_ = floats.Clamp(0, 1, -1)
}

func TestSgn(t *testing.T) {
	tests := []struct {
		x, want float64
	}{
		{-2, -1},
		{0, 0},
		{3, 1},
	}

	for _, tt := range tests {
		got := floats.Sgn(tt.x)
		if got != tt.want {
			t.Errorf("Sgn(%v) = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name      string
		input     []float64
		want      float64
		wantPanic bool
	}{
		{
			name:      "Nil slice",
			input:     nil,
			wantPanic: true,
		},
		{
			name:  "Single element",
			input: []float64{42.0},
			want:  42.0,
		},
		{
			name:  "Three elements",
			input: []float64{3.0, 1.0, 2.0},
			want:  2.0,
		},
		{
			name:  "Four elements",
			input: []float64{4.0, 1.0, 3.0, 2.0},
			want:  2.5,
		},
		{
			name:  "Mixed positive and negative values",
			input: []float64{-1.0, 2.0, -3.0, 4.0, -5.0, 6.0},
			want:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantPanic {
				defer func() {
					if r := recover(); r == nil {
						t.Errorf("expected panic, got none")
					}
				}()
				_ = floats.Median(tt.input)
			} else {
				in := append([]float64(nil), tt.input...)
				got := floats.Median(in)
				if got != tt.want {
					t.Errorf("Median(%v) = %v, want %v", tt.input, got, tt.want)
				}
				for i := range in {
					if in[i] != tt.input[i] {
						t.Errorf("Median reordered its input: %v", in)
						break
					}
				}
			}
		})
	}
}

func TestRMS(t *testing.T) {
	got := floats.RMS([]float64{3, -4, 3, -4})
	want := math.Sqrt(12.5)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("RMS = %v, want %v", got, want)
	}
}

func TestMaxAbs(t *testing.T) {
	got := floats.MaxAbs([]float64{1, -7, 3})
	if got != 7 {
		t.Errorf("MaxAbs = %v, want 7", got)
	}
	if got := floats.MaxAbs(nil); got != 0 {
		t.Errorf("MaxAbs(nil) = %v, want 0", got)
	}
}
