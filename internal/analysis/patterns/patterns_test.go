package patterns

import (
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/Azmorus/GPTScreener/internal/analysis"
	"github.com/Azmorus/GPTScreener/internal/analysis/indicators"
)

func seriesOf(t *testing.T, closes []float64) analysis.Series {
	t.Helper()
	res := analysis.FromFloats(closes)
	if res.Dropped != 0 {
		t.Fatalf("fixture dropped %d values", res.Dropped)
	}
	return res.Series
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	var out []float64
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func rampThenFlat() []float64 {
	closes := make([]float64, 0, 60)
	for i := 0; i < 50; i++ {
		closes = append(closes, 100-20*float64(i)/49)
	}
	return append(closes, 80, 81, 79, 80, 81, 79, 80, 81, 79, 80)
}

func increasing(from float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)
	}
	return out
}

func TestDetector_Detect(t *testing.T) {
	tests := []struct {
		name        string
		closes      []float64
		wantOutcome analysis.Outcome
		wantNames   []string
	}{
		{
			name:        "empty series",
			closes:      nil,
			wantOutcome: analysis.OutcomeInsufficientData,
		},
		{
			name:        "one short of the gate",
			closes:      repeat(100, MinObservations-1),
			wantOutcome: analysis.OutcomeInsufficientData,
		},
		{
			// The averaged trend stays above the current price ten bars back,
			// so only the tight tail registers.
			name:        "ramp down then flat tail",
			closes:      rampThenFlat(),
			wantOutcome: analysis.OutcomePatternsDetected,
			wantNames:   []string{"Bull Flag"},
		},
		{
			name:        "monotonic increase",
			closes:      increasing(100, 50),
			wantOutcome: analysis.OutcomeNoPatternDetected,
		},
		{
			name:        "cup and handle",
			closes:      concat(repeat(50, 40), repeat(150, 19), []float64{100}),
			wantOutcome: analysis.OutcomePatternsDetected,
			wantNames:   []string{"Cup and Handle"},
		},
		{
			name:        "both patterns in rule order",
			closes:      concat(repeat(50, 30), repeat(125, 10), repeat(100, 20)),
			wantOutcome: analysis.OutcomePatternsDetected,
			wantNames:   []string{"Cup and Handle", "Bull Flag"},
		},
		{
			name:        "constant series",
			closes:      repeat(200, 60),
			wantOutcome: analysis.OutcomePatternsDetected,
			wantNames:   []string{"Bull Flag"},
		},
	}

	d := NewDetector(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(seriesOf(t, tt.closes))
			if got.Outcome != tt.wantOutcome {
				t.Fatalf("Outcome = %q, want %q", got.Outcome, tt.wantOutcome)
			}
			if got.Observations != len(tt.closes) {
				t.Errorf("Observations = %d, want %d", got.Observations, len(tt.closes))
			}
			if tt.wantNames == nil {
				if len(got.Matches) != 0 {
					t.Errorf("Matches = %v, want none", got.Names())
				}
				return
			}
			if !reflect.DeepEqual(got.Names(), tt.wantNames) {
				t.Errorf("Names() = %v, want %v", got.Names(), tt.wantNames)
			}
		})
	}
}

func TestDetector_FlatWithinOnePercent(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 99.5
		} else {
			closes[i] = 100.5
		}
	}

	got := NewDetector(nil).Detect(seriesOf(t, closes))
	if !got.Matched(analysis.PatternBullFlag) {
		t.Errorf("flat series: Names() = %v, want Bull Flag", got.Names())
	}
}

func TestDetector_MalformedInputTolerated(t *testing.T) {
	raw := []interface{}{"1,234.5", "1300", "bad", nil, math.NaN(), true}
	for i := 0; i < 49; i++ {
		raw = append(raw, 1300+float64(i))
	}

	parsed := analysis.Normalize(raw)
	if parsed.Dropped != 4 {
		t.Fatalf("Dropped = %d, want 4", parsed.Dropped)
	}
	if parsed.Series.Len() != 51 {
		t.Fatalf("Len() = %d, want 51", parsed.Series.Len())
	}

	got := NewDetector(nil).Detect(parsed.Series)
	if !reflect.DeepEqual(got.Names(), []string{"Bull Flag"}) {
		t.Errorf("Names() = %v, want [Bull Flag]", got.Names())
	}
}

func TestDetector_GateRunsBeforeRules(t *testing.T) {
	called := false
	spy := analysis.RuleFunc{
		PatternName: "Spy",
		Fn: func(analysis.Series) bool {
			called = true
			return true
		},
	}
	reg, err := NewRegistry(spy)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	got := NewDetector(reg).Detect(seriesOf(t, repeat(100, 10)))
	if got.Outcome != analysis.OutcomeInsufficientData {
		t.Errorf("Outcome = %q, want insufficient data", got.Outcome)
	}
	if called {
		t.Error("rule evaluated on a series below the gate")
	}
}

func TestDetector_ExtraRuleDoesNotDisturbOthers(t *testing.T) {
	never := analysis.RuleFunc{PatternName: "Never", Fn: func(analysis.Series) bool { return false }}
	reg, err := DefaultRegistry(nil).With(never)
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	series := seriesOf(t, concat(repeat(50, 30), repeat(125, 10), repeat(100, 20)))
	base := NewDetector(nil).Detect(series)
	extended := NewDetector(reg).Detect(series)

	if !reflect.DeepEqual(base, extended) {
		t.Errorf("extended = %+v, want %+v", extended, base)
	}
}

func TestDetector_HilbertTrendOnShortSeries(t *testing.T) {
	d := NewDetector(DefaultRegistry(indicators.HilbertTrendline))

	// Inside the Hilbert warm-up the trend is zero, so only Bull Flag can fire.
	got := d.Detect(seriesOf(t, concat(repeat(50, 40), repeat(150, 19), []float64{100})))
	if got.Matched(analysis.PatternCupAndHandle) {
		t.Errorf("Names() = %v, want no Cup and Handle", got.Names())
	}
}

func TestDetector_ConcurrentDetectAndReload(t *testing.T) {
	d := NewDetector(nil)
	series := seriesOf(t, repeat(200, 60))
	never := analysis.RuleFunc{PatternName: "Never", Fn: func(analysis.Series) bool { return false }}
	extended, err := DefaultRegistry(nil).With(never)
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 64)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				got := d.Detect(series)
				if !reflect.DeepEqual(got.Names(), []string{"Bull Flag"}) {
					errs <- "unexpected names"
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			if j%2 == 0 {
				d.Reload(extended)
			} else {
				d.Reload(DefaultRegistry(nil))
			}
		}
	}()

	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestRegistry_Validation(t *testing.T) {
	ok := analysis.RuleFunc{PatternName: "A", Fn: func(analysis.Series) bool { return false }}

	tests := []struct {
		name    string
		rules   []analysis.Rule
		wantErr bool
	}{
		{"empty registry", nil, false},
		{"single rule", []analysis.Rule{ok}, false},
		{"nil rule", []analysis.Rule{ok, nil}, true},
		{"empty name", []analysis.Rule{analysis.RuleFunc{Fn: ok.Fn}}, true},
		{"duplicate name", []analysis.Rule{ok, ok}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.rules...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRegistry() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_WithLeavesReceiverUnchanged(t *testing.T) {
	base := DefaultRegistry(nil)
	extra := analysis.RuleFunc{PatternName: "Extra", Fn: func(analysis.Series) bool { return false }}

	next, err := base.With(extra)
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if base.Len() != 2 || next.Len() != 3 {
		t.Errorf("Len() base = %d next = %d, want 2 and 3", base.Len(), next.Len())
	}
	want := []analysis.PatternName{analysis.PatternCupAndHandle, analysis.PatternBullFlag, "Extra"}
	if !reflect.DeepEqual(next.Names(), want) {
		t.Errorf("Names() = %v, want %v", next.Names(), want)
	}

	if _, err := next.With(NewBullFlag()); err == nil {
		t.Error("With() accepted a duplicate rule name")
	}
}

func TestBandConstants(t *testing.T) {
	if UpperBand != 1.05 || LowerBand != 0.95 {
		t.Errorf("bands = %v/%v, want 1.05/0.95", UpperBand, LowerBand)
	}
}
