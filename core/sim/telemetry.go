package sim

import "strings"

// Flags mark recoverable conditions of a step.
type Flags uint8

const (
	// FlagFallback: no rule fired and the fallback output was used.
	FlagFallback Flags = 1 << iota
	// FlagSaturated: the control output was clamped to the actuation limits.
	FlagSaturated
	// FlagIntegralSaturated: the integral trim was clamped.
	FlagIntegralSaturated
	// FlagSpeedLimited: the follower velocity was clamped.
	FlagSpeedLimited
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{FlagFallback, "fallback"},
	{FlagSaturated, "saturated"},
	{FlagIntegralSaturated, "integral_saturated"},
	{FlagSpeedLimited, "speed_limited"},
}

func (f Flags) Has(g Flags) bool { return f&g == g }

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	var names []string
	for _, n := range flagNames {
		if f.Has(n.f) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

// Record is the telemetry of one step. Positions and velocities are taken at
// the end of the step.
type Record struct {
	Step             int
	Time             float64
	LeaderPosition   float64
	FollowerPosition float64
	LeaderVelocity   float64
	FollowerVelocity float64
	Distance         float64
	Error            float64
	Delta            float64
	FuzzyOutput      float64
	IntegralTerm     float64
	ControlOutput    float64
	// Rule is the index of the dominant rule, or -1 on fallback.
	Rule  int
	Flags Flags
}
