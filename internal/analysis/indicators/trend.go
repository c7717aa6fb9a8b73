package indicators

import (
	"fmt"
	"strings"

	talib "github.com/markcheno/go-talib"
)

const (
	// TrendWindow is the number of observations averaged by TrendEstimate.
	TrendWindow = 30
	// HilbertLookback is the number of leading positions HilbertTrendline leaves at zero.
	HilbertLookback = 63
)

// TrendFunc computes a trend estimate aligned with its input.
type TrendFunc func(closes []float64) []float64

// TrendMethod names a trend estimation technique.
type TrendMethod string

const (
	TrendSMA     TrendMethod = "sma"
	TrendHilbert TrendMethod = "hilbert"
)

// ParseTrendMethod validates a trend method name. An empty name selects TrendSMA.
func ParseTrendMethod(name string) (TrendMethod, error) {
	switch TrendMethod(strings.ToLower(strings.TrimSpace(name))) {
	case "", TrendSMA:
		return TrendSMA, nil
	case TrendHilbert:
		return TrendHilbert, nil
	default:
		return "", fmt.Errorf("unknown trend method %q (want %q or %q)", name, TrendSMA, TrendHilbert)
	}
}

// TrendFor returns the estimator for a method, defaulting to TrendEstimate.
func TrendFor(method TrendMethod) TrendFunc {
	if method == TrendHilbert {
		return HilbertTrendline
	}
	return TrendEstimate
}

// TrendEstimate returns a trailing TrendWindow-period simple moving average of
// closes, one value per input position.
//
// talib leaves the first TrendWindow-1 positions at zero; those are filled with
// the expanding mean of the observations seen so far, so the estimate is
// defined everywhere.
func TrendEstimate(closes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)

	head := n
	if head > TrendWindow-1 {
		head = TrendWindow - 1
	}
	var total float64
	for i := 0; i < head; i++ {
		total += closes[i]
		out[i] = total / float64(i+1)
	}

	if n >= TrendWindow {
		sma := talib.Sma(closes, TrendWindow)
		copy(out[TrendWindow-1:], sma[TrendWindow-1:])
	}

	return out
}

// HilbertTrendline returns the Hilbert transform instantaneous trendline of
// closes. Positions inside the HilbertLookback warm-up are zero, and a series
// too short to leave the warm-up yields all zeros.
func HilbertTrendline(closes []float64) []float64 {
	if len(closes) <= HilbertLookback {
		return make([]float64, len(closes))
	}
	return talib.HtTrendline(closes)
}
