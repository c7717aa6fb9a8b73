package patterns

import (
	"sync/atomic"

	"github.com/Azmorus/GPTScreener/internal/analysis"
)

// Detector runs every registered rule over a series and aggregates the matches.
// It is safe for concurrent use, including concurrent Reload.
type Detector struct {
	registry atomic.Pointer[Registry]
}

// NewDetector creates a detector over reg. A nil registry selects
// DefaultRegistry with the default trend estimate.
func NewDetector(reg *Registry) *Detector {
	if reg == nil {
		reg = DefaultRegistry(nil)
	}
	d := &Detector{}
	d.registry.Store(reg)
	return d
}

// Detect evaluates the rules over series.
//
// Series shorter than MinObservations yield InsufficientData without running
// any rule. Otherwise the result lists the matching rules in registry order, or
// is NoPatternDetected when none match.
func (d *Detector) Detect(series analysis.Series) analysis.Result {
	n := series.Len()
	if n < MinObservations {
		return analysis.InsufficientData(n)
	}

	reg := d.registry.Load()
	var matches []analysis.Match
	for _, rule := range reg.rules {
		if rule.Match(series) {
			matches = append(matches, analysis.Match{Pattern: rule.Name()})
		}
	}

	if len(matches) == 0 {
		return analysis.NoPatternDetected(n)
	}
	return analysis.Result{
		Outcome:      analysis.OutcomePatternsDetected,
		Matches:      matches,
		Observations: n,
	}
}

// Reload swaps the rule set. Detections already running finish on the old set.
func (d *Detector) Reload(reg *Registry) {
	if reg == nil {
		return
	}
	d.registry.Store(reg)
}

// Registry returns the active rule set.
func (d *Detector) Registry() *Registry {
	return d.registry.Load()
}
