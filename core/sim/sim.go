// Package sim runs the closed-loop leader/follower simulation.
//
// Each step samples the leader profile, advances the leader (explicit Euler),
// derives the distance error and its rate of change, asks the controller for
// a speed or acceleration command and advances the follower. Every step
// appends one telemetry record.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"example.com/fuzzy-follow/base/floats"
	"example.com/fuzzy-follow/base/zaplog"
	"example.com/fuzzy-follow/core/control"
)

var (
	// ErrTerminated is returned by Step once the horizon has been reached.
	ErrTerminated = errors.New("simulation terminated")
	// ErrDiverged is returned when the divergence guard stops a run.
	ErrDiverged = errors.New("simulation diverged")
	// ErrConfig is wrapped by invalid simulation parameters.
	ErrConfig = errors.New("invalid simulation configuration")
	// ErrProfile is returned when the leader profile yields a non-finite
	// velocity.
	ErrProfile = errors.New("invalid leader velocity")
)

// OutputMode tells how the control output drives the follower.
type OutputMode int

const (
	// Speed sets the follower velocity to the control output.
	Speed OutputMode = iota
	// Acceleration integrates the control output into the follower velocity.
	Acceleration
)

func (m OutputMode) String() string {
	switch m {
	case Speed:
		return "speed"
	case Acceleration:
		return "acceleration"
	default:
		return fmt.Sprintf("OutputMode(%d)", int(m))
	}
}

// DeltaMode selects the definition of the second controller input.
type DeltaMode int

const (
	// ErrorRate is (error - previous error) / dt.
	ErrorRate DeltaMode = iota
	// RelativeVelocity is leader velocity minus follower velocity.
	RelativeVelocity
	// StepChange is the absolute change of the first controller input since
	// the previous step, not scaled by dt.
	StepChange
)

func (m DeltaMode) String() string {
	switch m {
	case ErrorRate:
		return "error_rate"
	case RelativeVelocity:
		return "relative_velocity"
	case StepChange:
		return "step_change"
	default:
		return fmt.Sprintf("DeltaMode(%d)", int(m))
	}
}

// InputMode selects the first controller input.
type InputMode int

const (
	// ErrorInput feeds distance minus setpoint.
	ErrorInput InputMode = iota
	// DistanceInput feeds the raw, signed distance.
	DistanceInput
	// AbsDistanceInput feeds |distance|, which stays positive once the
	// follower has overtaken the leader.
	AbsDistanceInput
)

func (m InputMode) String() string {
	switch m {
	case ErrorInput:
		return "error"
	case DistanceInput:
		return "distance"
	case AbsDistanceInput:
		return "abs_distance"
	default:
		return fmt.Sprintf("InputMode(%d)", int(m))
	}
}

// Limits bounds the follower velocity.
type Limits struct {
	Min, Max float64
}

type Config struct {
	Dt       float64
	Steps    int
	Setpoint float64
	Leader   Profile

	LeaderPosition   float64
	FollowerPosition float64
	FollowerVelocity float64

	Output OutputMode
	Delta  DeltaMode
	Input  InputMode
	// ErrorInput and DeltaInput name the engine inputs receiving the first
	// and second controller input. ErrorInput defaults to "error" in
	// ErrorInput mode and to "distance" otherwise; DeltaInput defaults to
	// "delta" and must be empty for one-input engines.
	ErrorInput string
	DeltaInput string
	// SpeedLimits is optional; either bound may be infinite.
	SpeedLimits *Limits
	// MaxAbsError stops the run when |error| exceeds it; 0 disables the guard.
	MaxAbsError float64

	Controller *control.Controller
	Log        *zap.Logger
	// Metrics is optional; Labels are attached to every metric.
	Metrics prometheus.Registerer
	Labels  prometheus.Labels
}

type Phase int

const (
	Initialized Phase = iota
	Running
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// State is the mutable simulation state, owned by the Simulator.
type State struct {
	Step             int
	Time             float64
	LeaderPosition   float64
	LeaderVelocity   float64
	FollowerPosition float64
	FollowerVelocity float64
	PrevError        float64
	Integral         float64
}

type Simulator struct {
	log  *zap.Logger
	cfg  Config
	ctrl *control.Controller
	// engine input positions of the error and delta roles; delta is -1 for
	// one-input engines
	errIdx, deltaIdx int
	inputs           []float64
	prevInput        float64
	metrics          *simMetrics
	phase            Phase
	state            State
	records          []Record
}

func New(cfg Config) (*Simulator, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	errIdx, deltaIdx, err := bindInputs(cfg)
	if err != nil {
		return nil, err
	}
	s := &Simulator{
		log:      zaplog.OrNop(cfg.Log),
		cfg:      cfg,
		ctrl:     cfg.Controller,
		errIdx:   errIdx,
		deltaIdx: deltaIdx,
		inputs:   make([]float64, cfg.Controller.Engine().NumInputs()),
		metrics:  newSimMetrics(cfg.Metrics, cfg.Labels),
		records:  make([]Record, 0, cfg.Steps),
	}
	s.state = State{
		LeaderPosition:   cfg.LeaderPosition,
		LeaderVelocity:   cfg.Leader.VelocityAt(0),
		FollowerPosition: cfg.FollowerPosition,
		FollowerVelocity: cfg.FollowerVelocity,
	}
	s.state.PrevError = s.distance() - cfg.Setpoint
	s.prevInput = s.firstInput(s.distance())
	return s, nil
}

func validate(cfg Config) error {
	switch {
	case !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0):
		return fmt.Errorf("%w: time step must be positive, got %v", ErrConfig, cfg.Dt)
	case cfg.Steps <= 0:
		return fmt.Errorf("%w: step count must be positive, got %d", ErrConfig, cfg.Steps)
	case cfg.Leader == nil:
		return fmt.Errorf("%w: no leader profile", ErrConfig)
	case cfg.Controller == nil:
		return fmt.Errorf("%w: no controller", ErrConfig)
	case !finite(cfg.Setpoint, cfg.LeaderPosition, cfg.FollowerPosition, cfg.FollowerVelocity):
		return fmt.Errorf("%w: initial state must be finite", ErrConfig)
	case cfg.MaxAbsError < 0 || math.IsNaN(cfg.MaxAbsError):
		return fmt.Errorf("%w: divergence guard must be non-negative, got %v", ErrConfig, cfg.MaxAbsError)
	}
	if cfg.Output != Speed && cfg.Output != Acceleration {
		return fmt.Errorf("%w: unknown output mode %v", ErrConfig, cfg.Output)
	}
	if cfg.Delta != ErrorRate && cfg.Delta != RelativeVelocity && cfg.Delta != StepChange {
		return fmt.Errorf("%w: unknown delta mode %v", ErrConfig, cfg.Delta)
	}
	if cfg.Input != ErrorInput && cfg.Input != DistanceInput && cfg.Input != AbsDistanceInput {
		return fmt.Errorf("%w: unknown input mode %v", ErrConfig, cfg.Input)
	}
	if l := cfg.SpeedLimits; l != nil && (math.IsNaN(l.Min) || math.IsNaN(l.Max) || l.Min > l.Max) {
		return fmt.Errorf("%w: invalid speed limits [%v, %v]", ErrConfig, l.Min, l.Max)
	}
	if n := cfg.Controller.Engine().NumInputs(); n != 1 && n != 2 {
		return fmt.Errorf("%w: engine must take 1 or 2 inputs, takes %d", ErrConfig, n)
	}
	return nil
}

// bindInputs resolves the error and delta roles to engine input positions by
// variable name.
func bindInputs(cfg Config) (errIdx, deltaIdx int, err error) {
	e := cfg.Controller.Engine()
	errName := cfg.ErrorInput
	if errName == "" {
		errName = "error"
		if cfg.Input != ErrorInput {
			errName = "distance"
		}
	}
	errIdx, ok := e.InputIndex(errName)
	if !ok {
		return 0, 0, fmt.Errorf("%w: engine has no input variable %q for the %v input",
			ErrConfig, errName, cfg.Input)
	}
	if e.NumInputs() == 1 {
		if cfg.DeltaInput != "" {
			return 0, 0, fmt.Errorf("%w: delta input %q given for a one-input engine",
				ErrConfig, cfg.DeltaInput)
		}
		return errIdx, -1, nil
	}
	deltaName := cfg.DeltaInput
	if deltaName == "" {
		deltaName = "delta"
	}
	deltaIdx, ok = e.InputIndex(deltaName)
	if !ok {
		return 0, 0, fmt.Errorf("%w: engine has no input variable %q for the %v delta",
			ErrConfig, deltaName, cfg.Delta)
	}
	if deltaIdx == errIdx {
		return 0, 0, fmt.Errorf("%w: error and delta both bound to input %q", ErrConfig, errName)
	}
	return errIdx, deltaIdx, nil
}

func (s *Simulator) Phase() Phase { return s.phase }

func (s *Simulator) State() State { return s.state }

func (s *Simulator) Controller() *control.Controller { return s.ctrl }

// Telemetry returns the records produced so far.
func (s *Simulator) Telemetry() []Record {
	return append([]Record(nil), s.records...)
}

func (s *Simulator) distance() float64 {
	return s.state.LeaderPosition - s.state.FollowerPosition
}

// firstInput derives the first controller input from the distance.
func (s *Simulator) firstInput(distance float64) float64 {
	switch s.cfg.Input {
	case DistanceInput:
		return distance
	case AbsDistanceInput:
		return math.Abs(distance)
	default:
		return distance - s.cfg.Setpoint
	}
}

// Step advances the simulation by one time step.
func (s *Simulator) Step() (Record, error) {
	if s.phase == Terminated {
		return Record{}, ErrTerminated
	}
	s.phase = Running

	dt := s.cfg.Dt
	st := &s.state

	vl := s.cfg.Leader.VelocityAt(st.Time)
	if !finite(vl) {
		s.phase = Terminated
		return Record{}, fmt.Errorf("%w: %v at t=%.2f", ErrProfile, vl, st.Time)
	}
	st.LeaderVelocity = vl
	st.LeaderPosition += st.LeaderVelocity * dt

	distance := s.distance()
	e := distance - s.cfg.Setpoint
	x := s.firstInput(distance)
	var delta float64
	switch s.cfg.Delta {
	case ErrorRate:
		delta = (e - st.PrevError) / dt
	case RelativeVelocity:
		delta = st.LeaderVelocity - st.FollowerVelocity
	case StepChange:
		delta = math.Abs(x - s.prevInput)
	default:
		panic("unexpected delta mode")
	}

	s.inputs[s.errIdx] = x
	if s.deltaIdx >= 0 {
		s.inputs[s.deltaIdx] = delta
	}
	out := s.ctrl.Update(dt, e, s.inputs...)
	st.Integral = s.ctrl.Accumulator()

	var flags Flags
	if !out.Fired {
		flags |= FlagFallback
	}
	if out.Saturated {
		flags |= FlagSaturated
	}
	if out.IntegralSaturated {
		flags |= FlagIntegralSaturated
	}

	switch s.cfg.Output {
	case Speed:
		st.FollowerVelocity = out.Control
	case Acceleration:
		st.FollowerVelocity += out.Control * dt
	default:
		panic("unexpected output mode")
	}
	if l := s.cfg.SpeedLimits; l != nil {
		var limited bool
		st.FollowerVelocity, limited = floats.Clamped(st.FollowerVelocity, l.Min, l.Max)
		if limited {
			flags |= FlagSpeedLimited
		}
	}
	st.FollowerPosition += st.FollowerVelocity * dt

	st.Step++
	st.Time = float64(st.Step) * dt

	r := Record{
		Step:             st.Step,
		Time:             st.Time,
		LeaderPosition:   st.LeaderPosition,
		FollowerPosition: st.FollowerPosition,
		LeaderVelocity:   st.LeaderVelocity,
		FollowerVelocity: st.FollowerVelocity,
		Distance:         distance,
		Error:            e,
		Delta:            delta,
		FuzzyOutput:      out.Fuzzy,
		IntegralTerm:     out.Integral,
		ControlOutput:    out.Control,
		Rule:             out.Dominant,
		Flags:            flags,
	}
	s.records = append(s.records, r)
	st.PrevError = e
	s.prevInput = x

	s.metrics.observe(r)
	s.log.Debug("simulation step",
		zap.Int("step", r.Step),
		zap.Float64("t", r.Time),
		zap.Float64("distance", r.Distance),
		zap.Float64("error", r.Error),
		zap.Float64("delta", r.Delta),
		zap.Float64("fuzzy", r.FuzzyOutput),
		zap.Float64("i", r.IntegralTerm),
		zap.Float64("u", r.ControlOutput),
		zap.Float64("v_f", r.FollowerVelocity),
		zap.Stringer("flags", r.Flags),
	)

	if s.cfg.MaxAbsError > 0 && math.Abs(e) > s.cfg.MaxAbsError {
		s.phase = Terminated
		s.log.Warn("divergence guard tripped",
			zap.Int("step", r.Step),
			zap.Float64("error", e),
			zap.Float64("limit", s.cfg.MaxAbsError),
		)
		return r, fmt.Errorf("at t=%.2f: |error| %.3f exceeds %.3f: %w",
			r.Time, math.Abs(e), s.cfg.MaxAbsError, ErrDiverged)
	}
	if st.Step >= s.cfg.Steps {
		s.phase = Terminated
	}
	return r, nil
}

// Run steps until the horizon is reached, the divergence guard trips or ctx
// is done. The context is only checked between steps. The records produced
// so far are returned in every case.
func (s *Simulator) Run(ctx context.Context) ([]Record, error) {
	for s.phase != Terminated {
		if err := ctx.Err(); err != nil {
			return s.Telemetry(), err
		}
		if _, err := s.Step(); err != nil {
			return s.Telemetry(), err
		}
	}
	return s.Telemetry(), nil
}
