// Package indicators provides pure functions computing derived signals from
// closing prices.
package indicators

import (
	"errors"
)

var (
	// ErrInsufficientData is returned when a window holds no observations.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned for a non-positive window length.
	ErrInvalidPeriod = errors.New("invalid period")
)

// extremes scans values once for their minimum and maximum. An empty slice
// yields zeros.
func extremes(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		switch {
		case v < lo:
			lo = v
		case v > hi:
			hi = v
		}
	}
	return lo, hi
}
