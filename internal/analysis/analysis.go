// Package analysis provides the price series model and the shared types of the
// pattern detection engine: rules, matches and detection results.
package analysis

// PatternName identifies a chart pattern recognised by a Rule.
type PatternName string

const (
	PatternCupAndHandle PatternName = "Cup and Handle"
	PatternBullFlag     PatternName = "Bull Flag"
)

// Rule is a named, deterministic predicate over a price series.
//
// Match is only ever called by the detector after its minimum length gate has
// passed, so implementations may index the trailing window without checks.
type Rule interface {
	Name() PatternName
	Match(series Series) bool
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc struct {
	PatternName PatternName
	Fn          func(series Series) bool
}

func (r RuleFunc) Name() PatternName {
	return r.PatternName
}

func (r RuleFunc) Match(series Series) bool {
	return r.Fn(series)
}

// Match represents one recognised pattern.
type Match struct {
	Pattern PatternName `json:"pattern"`
}

// Outcome is the terminal state of a detection.
type Outcome string

const (
	OutcomeInsufficientData  Outcome = "insufficient_data"
	OutcomeNoPatternDetected Outcome = "no_pattern_detected"
	OutcomePatternsDetected  Outcome = "patterns_detected"
)

// Result is returned by a detection. Matches is non-empty only when Outcome is
// OutcomePatternsDetected and preserves rule evaluation order.
type Result struct {
	Outcome      Outcome `json:"outcome"`
	Matches      []Match `json:"patterns,omitempty"`
	Observations int     `json:"observations"`
}

// InsufficientData builds the result for a series too short to evaluate.
func InsufficientData(observations int) Result {
	return Result{Outcome: OutcomeInsufficientData, Observations: observations}
}

// NoPatternDetected builds the result for a series on which no rule matched.
func NoPatternDetected(observations int) Result {
	return Result{Outcome: OutcomeNoPatternDetected, Observations: observations}
}

// Names returns the matched pattern names in evaluation order.
func (r Result) Names() []string {
	names := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		names[i] = string(m.Pattern)
	}
	return names
}

// Matched reports whether the named pattern is among the matches.
func (r Result) Matched(name PatternName) bool {
	for _, m := range r.Matches {
		if m.Pattern == name {
			return true
		}
	}
	return false
}

// Summary renders the result the way the screener API reports it: a sentinel
// sentence for the two empty outcomes, or the list of pattern names.
func (r Result) Summary() interface{} {
	switch r.Outcome {
	case OutcomeInsufficientData:
		return "Not enough data"
	case OutcomeNoPatternDetected:
		return "No patterns detected"
	default:
		return r.Names()
	}
}
