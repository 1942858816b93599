// Package control wraps a fuzzy inference engine into a discrete-time
// controller: it applies the no-fire fallback policy, adds an optional
// integral trim with anti-windup and clamps the result to actuation limits.
package control

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"example.com/fuzzy-follow/base/floats"
	"example.com/fuzzy-follow/base/zaplog"
	"example.com/fuzzy-follow/core/fuzzy"
)

// FallbackPolicy decides the fuzzy output of a step in which no rule fired.
type FallbackPolicy int

const (
	// HoldPrevious repeats the previous fuzzy output.
	HoldPrevious FallbackPolicy = iota
	// UseFallbackValue uses the engine's configured fallback value.
	UseFallbackValue
)

func (p FallbackPolicy) String() string {
	switch p {
	case HoldPrevious:
		return "hold"
	case UseFallbackValue:
		return "value"
	default:
		return fmt.Sprintf("FallbackPolicy(%d)", int(p))
	}
}

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch s {
	case "", "hold":
		return HoldPrevious, nil
	case "value":
		return UseFallbackValue, nil
	default:
		return 0, fmt.Errorf("%w: unknown fallback policy %q", fuzzy.ErrConfig, s)
	}
}

// IntegralTrim adds Ki times the accumulated error to the fuzzy output. The
// contribution is clamped to [Min, Max] and the accumulator is
// back-calculated on saturation, so it starts unwinding as soon as the error
// changes sign.
type IntegralTrim struct {
	Ki       float64
	Min, Max float64
}

// Limits bounds the control output.
type Limits struct {
	Min, Max float64
}

type Config struct {
	Engine   *fuzzy.Engine
	Fallback FallbackPolicy
	// Integral is optional.
	Integral *IntegralTrim
	Output   Limits
	Log      *zap.Logger
}

type Controller struct {
	log    *zap.Logger
	engine *fuzzy.Engine
	policy FallbackPolicy
	trim   *IntegralTrim
	limits Limits

	integral  float64
	prevFuzzy float64
}

// Output is the result of one controller update.
type Output struct {
	Fuzzy    float64
	Integral float64
	Control  float64
	Fired    bool
	// Dominant is the strongest rule, or -1 on fallback.
	Dominant          int
	Saturated         bool
	IntegralSaturated bool
}

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func New(cfg Config) (*Controller, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("%w: controller has no inference engine", fuzzy.ErrConfig)
	}
	if cfg.Fallback != HoldPrevious && cfg.Fallback != UseFallbackValue {
		return nil, fmt.Errorf("%w: unknown fallback policy %v", fuzzy.ErrConfig, cfg.Fallback)
	}
	if !finite(cfg.Output.Min, cfg.Output.Max) || cfg.Output.Min >= cfg.Output.Max {
		return nil, fmt.Errorf("%w: invalid output limits [%v, %v]",
			fuzzy.ErrConfig, cfg.Output.Min, cfg.Output.Max)
	}
	var trim *IntegralTrim
	if cfg.Integral != nil {
		t := *cfg.Integral
		if !finite(t.Ki, t.Min, t.Max) || t.Min > 0 || t.Max < 0 || t.Min >= t.Max {
			return nil, fmt.Errorf("%w: invalid integral trim (ki %v, bounds [%v, %v])",
				fuzzy.ErrConfig, t.Ki, t.Min, t.Max)
		}
		trim = &t
	}
	return &Controller{
		log:       zaplog.OrNop(cfg.Log),
		engine:    cfg.Engine,
		policy:    cfg.Fallback,
		trim:      trim,
		limits:    cfg.Output,
		prevFuzzy: cfg.Engine.Fallback(),
	}, nil
}

func (c *Controller) Engine() *fuzzy.Engine { return c.engine }

// Accumulator returns the integral error accumulator.
func (c *Controller) Accumulator() float64 { return c.integral }

// Reset clears the integral accumulator and sets the output held on the
// first fallback.
func (c *Controller) Reset(held float64) {
	c.integral = 0
	c.prevFuzzy = held
}

// Update runs one control step. inputs are the crisp engine inputs; e is the
// error integrated by the trim over dt.
func (c *Controller) Update(dt, e float64, inputs ...float64) Output {
	if dt <= 0 {
		panic("unexpected time step")
	}
	var out Output
	r := c.engine.Infer(inputs...)
	out.Fired = r.Fired
	out.Dominant = r.Dominant
	switch {
	case r.Fired:
		out.Fuzzy = r.Value
	case c.policy == HoldPrevious:
		out.Fuzzy = c.prevFuzzy
	default:
		out.Fuzzy = r.Value
	}
	if !r.Fired {
		c.log.Debug("no rule fired, using fallback output",
			zap.Float64s("inputs", inputs),
			zap.Stringer("policy", c.policy),
			zap.Float64("output", out.Fuzzy),
		)
	}
	c.prevFuzzy = out.Fuzzy

	if c.trim != nil {
		c.integral += e * dt
		i := c.trim.Ki * c.integral
		out.Integral, out.IntegralSaturated = floats.Clamped(i, c.trim.Min, c.trim.Max)
		if out.IntegralSaturated && c.trim.Ki != 0 {
			c.integral = out.Integral / c.trim.Ki
		}
	}

	out.Control, out.Saturated = floats.Clamped(out.Fuzzy+out.Integral, c.limits.Min, c.limits.Max)
	return out
}
