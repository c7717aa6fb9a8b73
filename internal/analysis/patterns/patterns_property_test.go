package patterns

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Azmorus/GPTScreener/internal/analysis"
)

func closesGen(minLen, maxLen int) gopter.Gen {
	return gen.IntRange(minLen, maxLen).FlatMap(func(n interface{}) gopter.Gen {
		return gen.SliceOfN(n.(int), gen.Float64Range(1.0, 1000.0))
	}, reflect.TypeOf([]float64(nil)))
}

// Property: anything shorter than the gate is InsufficientData with no matches.
func TestProperty_ShortSeriesInsufficient(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	d := NewDetector(nil)

	properties.Property("len < MinObservations is insufficient", prop.ForAll(
		func(closes []float64) bool {
			got := d.Detect(analysis.FromFloats(closes).Series)
			return got.Outcome == analysis.OutcomeInsufficientData && len(got.Matches) == 0
		},
		closesGen(0, MinObservations-1),
	))

	properties.TestingRun(t)
}

// Property: detection is deterministic and, past the gate, never reports
// InsufficientData. Matches are always a subset of the rules in rule order.
func TestProperty_DetectionDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	d := NewDetector(nil)

	properties.Property("same input, same result", prop.ForAll(
		func(closes []float64) bool {
			series := analysis.FromFloats(closes).Series
			a, b := d.Detect(series), d.Detect(series)
			if !reflect.DeepEqual(a, b) {
				return false
			}
			switch a.Outcome {
			case analysis.OutcomeNoPatternDetected:
				return len(a.Matches) == 0
			case analysis.OutcomePatternsDetected:
				return isOrderedSubset(a.Names(), []string{"Cup and Handle", "Bull Flag"})
			default:
				return false
			}
		},
		closesGen(MinObservations, 200),
	))

	properties.TestingRun(t)
}

// Property: a series within ±1% of a constant price always registers a Bull Flag.
func TestProperty_FlatSeriesIsBullFlag(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	d := NewDetector(nil)

	properties.Property("flat series matches Bull Flag", prop.ForAll(
		func(base float64, n int, seed int64) bool {
			closes := make([]float64, n)
			x := uint64(seed)
			for i := range closes {
				x = x*6364136223846793005 + 1442695040888963407
				jitter := (float64(x>>11)/float64(1<<53))*0.02 - 0.01
				closes[i] = base * (1 + jitter)
			}
			return d.Detect(analysis.FromFloats(closes).Series).Matched(analysis.PatternBullFlag)
		},
		gen.Float64Range(1.0, 10000.0),
		gen.IntRange(MinObservations, 150),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

// Property: appending a rule that never matches leaves results unchanged.
func TestProperty_NeverMatchingRuleIsInert(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	never := analysis.RuleFunc{PatternName: "Never", Fn: func(analysis.Series) bool { return false }}
	reg, err := DefaultRegistry(nil).With(never)
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	base, extended := NewDetector(nil), NewDetector(reg)

	properties.Property("results identical", prop.ForAll(
		func(closes []float64) bool {
			series := analysis.FromFloats(closes).Series
			return reflect.DeepEqual(base.Detect(series), extended.Detect(series))
		},
		closesGen(0, 150),
	))

	properties.TestingRun(t)
}

func isOrderedSubset(got, order []string) bool {
	j := 0
	for _, name := range got {
		for j < len(order) && order[j] != name {
			j++
		}
		if j == len(order) {
			return false
		}
		j++
	}
	return true
}
