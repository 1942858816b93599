package fuzzy

import (
	"fmt"
	"math"
	"strings"
)

// Combinator folds the antecedent degrees of a rule into one firing strength.
type Combinator int

const (
	Min Combinator = iota
	Product
)

func (c Combinator) String() string {
	switch c {
	case Min:
		return "min"
	case Product:
		return "product"
	default:
		return fmt.Sprintf("Combinator(%d)", int(c))
	}
}

func ParseCombinator(s string) (Combinator, error) {
	switch strings.ToLower(s) {
	case "", "min", "and":
		return Min, nil
	case "product", "prod":
		return Product, nil
	default:
		return 0, configErrorf("unknown combinator %q", s)
	}
}

// Clause is a "variable is term" proposition.
type Clause struct {
	Variable string
	Term     string
}

func (c Clause) String() string {
	return c.Variable + " is " + c.Term
}

// Rule is a conjunction of antecedent clauses implying one consequent clause.
type Rule struct {
	Antecedents []Clause
	Combinator  Combinator
	Consequent  Clause
	Weight      float64
}

// NewRule returns a min-combined rule with weight 1.
func NewRule(consequent Clause, antecedents ...Clause) Rule {
	return Rule{
		Antecedents: antecedents,
		Combinator:  Min,
		Consequent:  consequent,
		Weight:      1,
	}
}

func (r Rule) String() string {
	var b strings.Builder
	b.WriteString("IF ")
	sep := " AND "
	if r.Combinator == Product {
		sep = " PROD "
	}
	for i, a := range r.Antecedents {
		if i != 0 {
			b.WriteString(sep)
		}
		b.WriteString(a.String())
	}
	b.WriteString(" THEN ")
	b.WriteString(r.Consequent.String())
	if r.Weight != 1 {
		fmt.Fprintf(&b, " WITH %g", r.Weight)
	}
	return b.String()
}

// RuleBase is an ordered set of rules sharing one consequent variable.
type RuleBase struct {
	consequent *Variable
	rules      []Rule
}

func NewRuleBase(consequent *Variable, rules ...Rule) (*RuleBase, error) {
	if consequent == nil {
		return nil, configErrorf("rule base has no consequent variable")
	}
	if len(rules) == 0 {
		return nil, configErrorf("rule base for %q is empty", consequent.Name())
	}
	for i, r := range rules {
		if len(r.Antecedents) == 0 {
			return nil, configErrorf("rule %d has no antecedents", i)
		}
		if r.Consequent.Variable != consequent.Name() {
			return nil, configErrorf("rule %d concludes on %q, rule base concludes on %q",
				i, r.Consequent.Variable, consequent.Name())
		}
		if _, ok := consequent.TermIndex(r.Consequent.Term); !ok {
			return nil, configErrorf("rule %d: variable %q has no term %q",
				i, consequent.Name(), r.Consequent.Term)
		}
		if r.Combinator != Min && r.Combinator != Product {
			return nil, configErrorf("rule %d: unknown combinator %v", i, r.Combinator)
		}
		if math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) || r.Weight < 0 {
			return nil, configErrorf("rule %d: weight must be finite and non-negative, got %v", i, r.Weight)
		}
	}
	rb := &RuleBase{consequent: consequent, rules: make([]Rule, len(rules))}
	for i, r := range rules {
		r.Antecedents = append([]Clause(nil), r.Antecedents...)
		rb.rules[i] = r
	}
	return rb, nil
}

func (rb *RuleBase) Consequent() *Variable { return rb.consequent }

func (rb *RuleBase) Len() int { return len(rb.rules) }

func (rb *RuleBase) Rule(i int) Rule {
	r := rb.rules[i]
	r.Antecedents = append([]Clause(nil), r.Antecedents...)
	return r
}
