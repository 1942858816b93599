package fuzzy

import (
	"fmt"
	"math"
	"strings"

	"example.com/fuzzy-follow/base/floats"
)

// Implication turns a rule's firing strength and consequent membership
// function into that rule's contribution to the output set.
type Implication int

const (
	// Mamdani clips the consequent at the firing strength.
	Mamdani Implication = iota
	// Larsen scales the consequent by the firing strength.
	Larsen
)

func (m Implication) String() string {
	switch m {
	case Mamdani:
		return "mamdani"
	case Larsen:
		return "larsen"
	default:
		return fmt.Sprintf("Implication(%d)", int(m))
	}
}

func ParseImplication(s string) (Implication, error) {
	switch strings.ToLower(s) {
	case "", "mamdani", "min", "clip":
		return Mamdani, nil
	case "larsen", "product", "scale":
		return Larsen, nil
	default:
		return 0, configErrorf("unknown implication %q", s)
	}
}

// Defuzzification selects how the aggregated set becomes a crisp value.
type Defuzzification int

const (
	Centroid Defuzzification = iota
)

func (d Defuzzification) String() string {
	switch d {
	case Centroid:
		return "centroid"
	default:
		return fmt.Sprintf("Defuzzification(%d)", int(d))
	}
}

func ParseDefuzzification(s string) (Defuzzification, error) {
	switch strings.ToLower(s) {
	case "", "centroid", "cog":
		return Centroid, nil
	default:
		return 0, configErrorf("unknown defuzzification method %q", s)
	}
}

// Config describes an inference engine. Inputs are the antecedent variables in
// the order crisp values are passed to Infer.
type Config struct {
	Inputs          []*Variable
	RuleBase        *RuleBase
	Implication     Implication
	Defuzzification Defuzzification
	// Fallback is returned in Result.Value when no rule fires.
	Fallback float64
}

type clause struct {
	input, term int
}

type compiledRule struct {
	clauses    []clause
	combinator Combinator
	term       int
	weight     float64
}

// Engine is an immutable Mamdani/Larsen inference engine. It is safe for
// concurrent use.
type Engine struct {
	inputs      []*Variable
	inputIndex  map[string]int
	output      *Variable
	points      []float64
	consequents [][]float64
	rules       []compiledRule
	ruleBase    *RuleBase
	implication Implication
	fallback    float64
}

func NewEngine(cfg Config) (*Engine, error) {
	if len(cfg.Inputs) == 0 {
		return nil, configErrorf("engine has no input variables")
	}
	if cfg.RuleBase == nil {
		return nil, configErrorf("engine has no rule base")
	}
	if cfg.Implication != Mamdani && cfg.Implication != Larsen {
		return nil, configErrorf("unknown implication %v", cfg.Implication)
	}
	if cfg.Defuzzification != Centroid {
		return nil, configErrorf("unknown defuzzification method %v", cfg.Defuzzification)
	}
	if math.IsNaN(cfg.Fallback) || math.IsInf(cfg.Fallback, 0) {
		return nil, configErrorf("fallback value must be finite, got %v", cfg.Fallback)
	}

	e := &Engine{
		inputs:      append([]*Variable(nil), cfg.Inputs...),
		inputIndex:  make(map[string]int, len(cfg.Inputs)),
		output:      cfg.RuleBase.Consequent(),
		ruleBase:    cfg.RuleBase,
		implication: cfg.Implication,
		fallback:    cfg.Fallback,
	}
	for i, v := range e.inputs {
		if v == nil {
			return nil, configErrorf("input %d is nil", i)
		}
		if _, ok := e.inputIndex[v.Name()]; ok {
			return nil, configErrorf("duplicate input variable %q", v.Name())
		}
		if v.Name() == e.output.Name() {
			return nil, configErrorf("variable %q is both input and output", v.Name())
		}
		e.inputIndex[v.Name()] = i
	}

	e.points = e.output.Universe().Points()
	e.consequents = make([][]float64, e.output.NumTerms())
	for j := range e.consequents {
		mf := e.output.Term(j).MF
		samples := make([]float64, len(e.points))
		for k, u := range e.points {
			samples[k] = mf.Degree(u)
		}
		e.consequents[j] = samples
	}

	e.rules = make([]compiledRule, cfg.RuleBase.Len())
	for i := range e.rules {
		r := cfg.RuleBase.Rule(i)
		cr := compiledRule{
			clauses:    make([]clause, len(r.Antecedents)),
			combinator: r.Combinator,
			weight:     r.Weight,
		}
		cr.term, _ = e.output.TermIndex(r.Consequent.Term)
		for k, a := range r.Antecedents {
			in, ok := e.inputIndex[a.Variable]
			if !ok {
				return nil, configErrorf("rule %d (%v): unknown input variable %q", i, r, a.Variable)
			}
			t, ok := e.inputs[in].TermIndex(a.Term)
			if !ok {
				return nil, configErrorf("rule %d (%v): variable %q has no term %q", i, r, a.Variable, a.Term)
			}
			cr.clauses[k] = clause{input: in, term: t}
		}
		e.rules[i] = cr
	}
	return e, nil
}

func (e *Engine) NumInputs() int { return len(e.inputs) }

func (e *Engine) Input(i int) *Variable { return e.inputs[i] }

func (e *Engine) InputIndex(name string) (int, bool) {
	i, ok := e.inputIndex[name]
	return i, ok
}

func (e *Engine) Output() *Variable { return e.output }

func (e *Engine) RuleBase() *RuleBase { return e.ruleBase }

func (e *Engine) Implication() Implication { return e.implication }

func (e *Engine) Fallback() float64 { return e.fallback }

// Points returns the output universe sample points.
func (e *Engine) Points() []float64 {
	return append([]float64(nil), e.points...)
}

// Result is the outcome of one inference. Fired is false when no rule fired;
// Value then holds the configured fallback instead of a centroid.
type Result struct {
	Value float64
	Fired bool
	// Dominant is the index of the strongest rule, the lowest index on ties,
	// or -1 if no rule fired.
	Dominant int
}

// Or returns the centroid if a rule fired and v otherwise.
func (r Result) Or(v float64) float64 {
	if r.Fired {
		return r.Value
	}
	return v
}

// Evaluation exposes the intermediate stages of one inference.
type Evaluation struct {
	Fuzzified [][]float64
	Strengths []float64
	Aggregate []float64
	Result
}

func (e *Engine) checkArity(inputs []float64) {
	if len(inputs) != len(e.inputs) {
		panic(fmt.Sprintf("unexpected number of inputs: %d, want %d", len(inputs), len(e.inputs)))
	}
}

// Infer computes the crisp output for one crisp value per input variable.
func (e *Engine) Infer(inputs ...float64) Result {
	return e.Evaluate(inputs...).Result
}

// InferNamed is like Infer with inputs keyed by variable name.
func (e *Engine) InferNamed(inputs map[string]float64) (Result, error) {
	xs, err := e.positional(inputs)
	if err != nil {
		return Result{}, err
	}
	return e.Infer(xs...), nil
}

// EvaluateNamed is like Evaluate with inputs keyed by variable name.
func (e *Engine) EvaluateNamed(inputs map[string]float64) (Evaluation, error) {
	xs, err := e.positional(inputs)
	if err != nil {
		return Evaluation{}, err
	}
	return e.Evaluate(xs...), nil
}

func (e *Engine) positional(inputs map[string]float64) ([]float64, error) {
	for name := range inputs {
		if _, ok := e.inputIndex[name]; !ok {
			return nil, fmt.Errorf("unknown input variable %q", name)
		}
	}
	xs := make([]float64, len(e.inputs))
	for i, v := range e.inputs {
		x, ok := inputs[v.Name()]
		if !ok {
			return nil, fmt.Errorf("missing value for input variable %q", v.Name())
		}
		xs[i] = x
	}
	return xs, nil
}

// Evaluate runs the full inference and keeps the intermediate results.
func (e *Engine) Evaluate(inputs ...float64) Evaluation {
	e.checkArity(inputs)
	var ev Evaluation
	ev.Fuzzified = make([][]float64, len(e.inputs))
	for i, v := range e.inputs {
		ev.Fuzzified[i] = make([]float64, v.NumTerms())
		v.fuzzifyInto(ev.Fuzzified[i], inputs[i])
	}
	ev.Strengths = e.fire(ev.Fuzzified)
	ev.Aggregate = e.aggregate(ev.Strengths)
	ev.Result = Result{Value: e.fallback, Dominant: -1}
	if c, ok := CentroidOf(e.points, ev.Aggregate); ok {
		ev.Value = c
		ev.Fired = true
		ev.Dominant = dominant(ev.Strengths)
	}
	return ev
}

// Strengths returns the firing strength of every rule for the given inputs.
func (e *Engine) Strengths(inputs ...float64) []float64 {
	return e.Evaluate(inputs...).Strengths
}

func (e *Engine) fire(fuzzified [][]float64) []float64 {
	ss := make([]float64, len(e.rules))
	for i, r := range e.rules {
		s := 1.0
		for _, c := range r.clauses {
			d := fuzzified[c.input][c.term]
			switch r.combinator {
			case Min:
				s = math.Min(s, d)
			case Product:
				s *= d
			default:
				panic("unexpected combinator")
			}
		}
		ss[i] = floats.Clamp(s*r.weight, 0, 1)
	}
	return ss
}

// Contribution returns rule i's implied output set at firing strength s.
func (e *Engine) Contribution(i int, s float64) []float64 {
	out := make([]float64, len(e.points))
	e.implicate(out, e.consequents[e.rules[i].term], s, false)
	return out
}

func (e *Engine) aggregate(strengths []float64) []float64 {
	agg := make([]float64, len(e.points))
	for i, s := range strengths {
		if s <= 0 {
			continue
		}
		e.implicate(agg, e.consequents[e.rules[i].term], s, true)
	}
	return agg
}

// implicate writes the implied set into out, or folds it in by pointwise
// maximum if accumulate is set.
func (e *Engine) implicate(out, mu []float64, s float64, accumulate bool) {
	for k, m := range mu {
		var c float64
		switch e.implication {
		case Mamdani:
			c = math.Min(s, m)
		case Larsen:
			c = s * m
		default:
			panic("unexpected implication")
		}
		if !accumulate || c > out[k] {
			out[k] = c
		}
	}
}

func dominant(strengths []float64) int {
	best, bestIdx := 0.0, -1
	for i, s := range strengths {
		if s > best {
			best, bestIdx = s, i
		}
	}
	return bestIdx
}

// CentroidOf returns the centre of gravity of the sampled set (points, degrees).
// It reports false instead of dividing by zero when the set is empty.
func CentroidOf(points, degrees []float64) (float64, bool) {
	if len(points) != len(degrees) {
		panic("unexpected number of values")
	}
	var num, den float64
	for i, u := range points {
		num += u * degrees[i]
		den += degrees[i]
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}
