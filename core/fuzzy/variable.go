package fuzzy

import (
	"fmt"
	"math"
)

// Term is a named membership function of a linguistic variable.
type Term struct {
	Name string
	MF   MembershipFunction
}

// Variable is a linguistic variable: a named quantity over a universe,
// described by an ordered set of uniquely named terms.
type Variable struct {
	name     string
	universe Universe
	terms    []Term
	index    map[string]int
}

func NewVariable(name string, u Universe, terms ...Term) (*Variable, error) {
	if name == "" {
		return nil, configErrorf("variable name must not be empty")
	}
	if err := u.validate(); err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	if len(terms) == 0 {
		return nil, configErrorf("variable %q has no terms", name)
	}
	v := &Variable{
		name:     name,
		universe: u,
		terms:    make([]Term, len(terms)),
		index:    make(map[string]int, len(terms)),
	}
	for i, t := range terms {
		if t.Name == "" {
			return nil, configErrorf("variable %q: term %d has no name", name, i)
		}
		if _, ok := v.index[t.Name]; ok {
			return nil, configErrorf("variable %q: duplicate term %q", name, t.Name)
		}
		if t.MF == nil {
			return nil, configErrorf("variable %q: term %q has no membership function", name, t.Name)
		}
		if err := t.MF.validate(); err != nil {
			return nil, fmt.Errorf("variable %q: term %q: %w", name, t.Name, err)
		}
		for _, k := range t.MF.Knots() {
			if !u.Contains(k) {
				return nil, configErrorf("variable %q: term %q: knot %v outside universe [%v, %v]",
					name, t.Name, k, u.Lo, u.Hi)
			}
		}
		v.terms[i] = t
		v.index[t.Name] = i
	}
	return v, nil
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Universe() Universe { return v.universe }

func (v *Variable) NumTerms() int { return len(v.terms) }

func (v *Variable) Term(i int) Term { return v.terms[i] }

// TermIndex resolves a term name to its position.
func (v *Variable) TermIndex(name string) (int, bool) {
	i, ok := v.index[name]
	return i, ok
}

// Fuzzify clamps x to the universe and returns the degree of every term, in
// term order.
func (v *Variable) Fuzzify(x float64) []float64 {
	ds := make([]float64, len(v.terms))
	v.fuzzifyInto(ds, x)
	return ds
}

func (v *Variable) fuzzifyInto(ds []float64, x float64) {
	if math.IsNaN(x) {
		clear(ds)
		return
	}
	x = v.universe.Clamp(x)
	for i, t := range v.terms {
		ds[i] = t.MF.Degree(x)
	}
}

// FuzzifyMap is like Fuzzify but keyed by term name.
func (v *Variable) FuzzifyMap(x float64) map[string]float64 {
	ds := v.Fuzzify(x)
	m := make(map[string]float64, len(ds))
	for i, d := range ds {
		m[v.terms[i].Name] = d
	}
	return m
}
