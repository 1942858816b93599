package config

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"example.com/fuzzy-follow/core/control"
	"example.com/fuzzy-follow/core/fuzzy"
	"example.com/fuzzy-follow/core/sim"
)

func (t Term) membershipFunction() (fuzzy.MembershipFunction, error) {
	p := t.Points
	switch t.Shape {
	case "triangle":
		if len(p) != 3 {
			return nil, fmt.Errorf("%w: term %q: triangle takes 3 points, got %d",
				fuzzy.ErrConfig, t.Name, len(p))
		}
		return fuzzy.Triangle{A: p[0], B: p[1], C: p[2]}, nil
	case "trapezoid":
		if len(p) != 4 {
			return nil, fmt.Errorf("%w: term %q: trapezoid takes 4 points, got %d",
				fuzzy.ErrConfig, t.Name, len(p))
		}
		return fuzzy.Trapezoid{A: p[0], B: p[1], C: p[2], D: p[3]}, nil
	default:
		return nil, fmt.Errorf("%w: term %q: unknown shape %q", fuzzy.ErrConfig, t.Name, t.Shape)
	}
}

func (v Variable) build() (*fuzzy.Variable, error) {
	u, err := fuzzy.NewUniverse(v.Min, v.Max, v.Step)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", v.Name, err)
	}
	terms := make([]fuzzy.Term, len(v.Terms))
	for i, t := range v.Terms {
		mf, err := t.membershipFunction()
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		terms[i] = fuzzy.Term{Name: t.Name, MF: mf}
	}
	return fuzzy.NewVariable(v.Name, u, terms...)
}

func (r Rule) build() (fuzzy.Rule, error) {
	c, err := fuzzy.ParseCombinator(r.Combinator)
	if err != nil {
		return fuzzy.Rule{}, err
	}
	rule := fuzzy.Rule{
		Antecedents: make([]fuzzy.Clause, len(r.If)),
		Combinator:  c,
		Consequent:  fuzzy.Clause{Variable: r.Then.Variable, Term: r.Then.Term},
		Weight:      1,
	}
	for i, a := range r.If {
		rule.Antecedents[i] = fuzzy.Clause{Variable: a.Variable, Term: a.Term}
	}
	if r.Weight != nil {
		rule.Weight = *r.Weight
	}
	return rule, nil
}

// BuildEngine constructs the inference engine described by the [engine]
// section.
func (f *File) BuildEngine() (*fuzzy.Engine, error) {
	ec := f.Engine
	inputs := make([]*fuzzy.Variable, len(ec.Inputs))
	for i, v := range ec.Inputs {
		in, err := v.build()
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}
	output, err := ec.Output.build()
	if err != nil {
		return nil, err
	}
	rules := make([]fuzzy.Rule, len(ec.Rules))
	for i, r := range ec.Rules {
		rules[i], err = r.build()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	rb, err := fuzzy.NewRuleBase(output, rules...)
	if err != nil {
		return nil, err
	}
	imp, err := fuzzy.ParseImplication(ec.Implication)
	if err != nil {
		return nil, err
	}
	def, err := fuzzy.ParseDefuzzification(ec.Defuzzification)
	if err != nil {
		return nil, err
	}
	return fuzzy.NewEngine(fuzzy.Config{
		Inputs:          inputs,
		RuleBase:        rb,
		Implication:     imp,
		Defuzzification: def,
		Fallback:        ec.FallbackValue,
	})
}

// BuildController wraps the engine into a controller. Without a [simulation]
// section the output limits are the output universe and there is no
// integral trim.
func (f *File) BuildController(log *zap.Logger) (*control.Controller, error) {
	e, err := f.BuildEngine()
	if err != nil {
		return nil, err
	}
	policy, err := control.ParseFallbackPolicy(f.Engine.Fallback)
	if err != nil {
		return nil, err
	}
	u := e.Output().Universe()
	limits := control.Limits{Min: u.Lo, Max: u.Hi}
	var trim *control.IntegralTrim
	if s := f.Simulation; s != nil {
		if s.OutputMin != nil {
			limits.Min = *s.OutputMin
		}
		if s.OutputMax != nil {
			limits.Max = *s.OutputMax
		}
		if s.Integral != nil {
			trim = &control.IntegralTrim{Ki: s.Integral.Ki, Min: s.Integral.Min, Max: s.Integral.Max}
		}
	}
	return control.New(control.Config{
		Engine:   e,
		Fallback: policy,
		Integral: trim,
		Output:   limits,
		Log:      log,
	})
}

// SimulatorOptions carries the collaborators of a simulator that do not come
// from the configuration file.
type SimulatorOptions struct {
	Log     *zap.Logger
	Metrics prometheus.Registerer
	Labels  prometheus.Labels
}

var (
	outputModes = map[string]sim.OutputMode{
		"":             sim.Speed,
		"speed":        sim.Speed,
		"acceleration": sim.Acceleration,
	}
	deltaModes = map[string]sim.DeltaMode{
		"":                  sim.ErrorRate,
		"error_rate":        sim.ErrorRate,
		"relative_velocity": sim.RelativeVelocity,
		"step_change":       sim.StepChange,
	}
	inputModes = map[string]sim.InputMode{
		"":             sim.ErrorInput,
		"error":        sim.ErrorInput,
		"distance":     sim.DistanceInput,
		"abs_distance": sim.AbsDistanceInput,
	}
)

// BuildSimulator constructs a ready-to-run simulator. The file must have a
// [simulation] section.
func (f *File) BuildSimulator(opts SimulatorOptions) (*sim.Simulator, error) {
	s := f.Simulation
	if s == nil {
		return nil, fmt.Errorf("%w: no [simulation] section", sim.ErrConfig)
	}
	ctrl, err := f.BuildController(opts.Log)
	if err != nil {
		return nil, err
	}
	segs := make([]sim.Segment, len(s.Leader.Segments))
	for i, g := range s.Leader.Segments {
		segs[i] = sim.Segment{At: g.At, Velocity: g.Velocity}
	}
	leader, err := sim.NewStepProfile(s.Leader.Velocity, segs...)
	if err != nil {
		return nil, err
	}
	output, ok := outputModes[s.Output]
	if !ok {
		return nil, fmt.Errorf("%w: unknown output mode %q", sim.ErrConfig, s.Output)
	}
	delta, ok := deltaModes[s.Delta]
	if !ok {
		return nil, fmt.Errorf("%w: unknown delta mode %q", sim.ErrConfig, s.Delta)
	}
	input, ok := inputModes[s.Input]
	if !ok {
		return nil, fmt.Errorf("%w: unknown input mode %q", sim.ErrConfig, s.Input)
	}
	var speed *sim.Limits
	if s.SpeedMin != nil || s.SpeedMax != nil {
		speed = &sim.Limits{Min: math.Inf(-1), Max: math.Inf(1)}
		if s.SpeedMin != nil {
			speed.Min = *s.SpeedMin
		}
		if s.SpeedMax != nil {
			speed.Max = *s.SpeedMax
		}
	}
	return sim.New(sim.Config{
		Dt:               s.Dt,
		Steps:            s.Steps,
		Setpoint:         s.Setpoint,
		Leader:           leader,
		LeaderPosition:   s.Leader.Position,
		FollowerPosition: s.Follower.Position,
		FollowerVelocity: s.Follower.Velocity,
		Output:           output,
		Delta:            delta,
		Input:            input,
		ErrorInput:       s.ErrorInput,
		DeltaInput:       s.DeltaInput,
		SpeedLimits:      speed,
		MaxAbsError:      s.MaxAbsError,
		Controller:       ctrl,
		Log:              opts.Log,
		Metrics:          opts.Metrics,
		Labels:           opts.Labels,
	})
}
