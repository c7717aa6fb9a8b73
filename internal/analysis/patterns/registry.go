package patterns

import (
	"fmt"

	"github.com/Azmorus/GPTScreener/internal/analysis"
	"github.com/Azmorus/GPTScreener/internal/analysis/indicators"
)

// Registry is an immutable, ordered set of rules. Evaluation order is
// registration order.
type Registry struct {
	rules []analysis.Rule
}

// NewRegistry creates a registry holding rules in the given order. Nil rules,
// empty names and duplicate names are rejected.
func NewRegistry(rules ...analysis.Rule) (*Registry, error) {
	seen := make(map[analysis.PatternName]struct{}, len(rules))
	out := make([]analysis.Rule, 0, len(rules))

	for i, r := range rules {
		if r == nil {
			return nil, fmt.Errorf("rule %d is nil", i)
		}
		name := r.Name()
		if name == "" {
			return nil, fmt.Errorf("rule %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate rule %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, r)
	}

	return &Registry{rules: out}, nil
}

// DefaultRegistry returns the built-in rules, Cup and Handle then Bull Flag.
func DefaultRegistry(trend indicators.TrendFunc) *Registry {
	return &Registry{rules: []analysis.Rule{
		NewCupAndHandle(trend),
		NewBullFlag(),
	}}
}

// With returns a new registry with rules appended. The receiver is unchanged.
func (r *Registry) With(rules ...analysis.Rule) (*Registry, error) {
	return NewRegistry(append(r.Rules(), rules...)...)
}

// Rules returns a copy of the registered rules.
func (r *Registry) Rules() []analysis.Rule {
	out := make([]analysis.Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Names returns the rule names in evaluation order.
func (r *Registry) Names() []analysis.PatternName {
	names := make([]analysis.PatternName, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name()
	}
	return names
}

// Len returns the number of rules.
func (r *Registry) Len() int {
	return len(r.rules)
}
