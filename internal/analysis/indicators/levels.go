package indicators

import (
	talib "github.com/markcheno/go-talib"
)

// Range is the lowest and highest value of a window of observations.
type Range struct {
	Low  float64
	High float64
}

// RecentRange returns the min and max of the trailing n closes, or of all closes
// when fewer than n exist.
func RecentRange(closes []float64, n int) (Range, error) {
	if n <= 0 {
		return Range{}, ErrInvalidPeriod
	}
	if len(closes) == 0 {
		return Range{}, ErrInsufficientData
	}
	if n > len(closes) {
		n = len(closes)
	}

	window := closes[len(closes)-n:]
	if n < 2 {
		lo, hi := extremes(window)
		return Range{Low: lo, High: hi}, nil
	}

	return Range{
		Low:  talib.Min(window, n)[n-1],
		High: talib.Max(window, n)[n-1],
	}, nil
}
