// Package patterns provides the chart pattern rules and the detector that
// evaluates them over a price series.
package patterns

import (
	"github.com/Azmorus/GPTScreener/internal/analysis"
	"github.com/Azmorus/GPTScreener/internal/analysis/indicators"
)

const (
	// MinObservations is the shortest series any rule is evaluated on.
	MinObservations = 50
	// RecentWindow is the trailing window examined by the Bull Flag rule.
	RecentWindow = 20
	// CupHandleLookback is how many observations back the Cup and Handle rule
	// compares the trend against.
	CupHandleLookback = 10
	// BandPercent is the half-width of the band around the last price.
	BandPercent = 0.05

	UpperBand = 1 + BandPercent
	LowerBand = 1 - BandPercent
)

// CupAndHandle matches when the trend now runs above the last price's upper
// band while CupHandleLookback observations earlier it ran below the lower band.
type CupAndHandle struct {
	trend indicators.TrendFunc
}

// NewCupAndHandle creates the rule. A nil trend selects indicators.TrendEstimate.
func NewCupAndHandle(trend indicators.TrendFunc) *CupAndHandle {
	if trend == nil {
		trend = indicators.TrendEstimate
	}
	return &CupAndHandle{trend: trend}
}

func (r *CupAndHandle) Name() analysis.PatternName {
	return analysis.PatternCupAndHandle
}

func (r *CupAndHandle) Match(series analysis.Series) bool {
	trend := r.trend(series.Closes())
	li := len(trend) - 1
	last := series.Last()

	return trend[li] > last*UpperBand && trend[li-CupHandleLookback] < last*LowerBand
}

// BullFlag matches when every one of the trailing RecentWindow observations sits
// strictly inside the band around the last price.
//
// The last price always lies inside its own band, so any tightly clustered
// window matches. That behavior is kept as is.
type BullFlag struct{}

// NewBullFlag creates the rule.
func NewBullFlag() *BullFlag {
	return &BullFlag{}
}

func (r *BullFlag) Name() analysis.PatternName {
	return analysis.PatternBullFlag
}

func (r *BullFlag) Match(series analysis.Series) bool {
	rng, err := indicators.RecentRange(series.Tail(RecentWindow), RecentWindow)
	if err != nil {
		return false
	}
	last := series.Last()

	return rng.High < last*UpperBand && rng.Low > last*LowerBand
}
