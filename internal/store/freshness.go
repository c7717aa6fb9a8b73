package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Azmorus/GPTScreener/internal/models"
)

// DefaultStaleAfter is how old the newest daily candle may be before a sync is due.
const DefaultStaleAfter = 24 * time.Hour

// DataFreshness describes how current the stored candles of a symbol are.
type DataFreshness struct {
	Symbol      string
	Timeframe   models.Timeframe
	LastUpdated time.Time
	Count       int
	IsFresh     bool
	Age         time.Duration
}

// CheckFreshness reports the freshness of symbol's candles relative to now.
// A non-positive staleAfter selects DefaultStaleAfter.
func CheckFreshness(ctx context.Context, s CandleStore, symbol string, timeframe models.Timeframe, staleAfter time.Duration, now time.Time) (*DataFreshness, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	last, err := s.GetCandlesFreshness(ctx, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	count, err := s.CountCandles(ctx, symbol, timeframe)
	if err != nil {
		return nil, err
	}

	f := &DataFreshness{
		Symbol:      symbol,
		Timeframe:   timeframe,
		LastUpdated: last,
		Count:       count,
	}
	if !last.IsZero() {
		f.Age = now.Sub(last)
		f.IsFresh = f.Age < staleAfter
	}
	return f, nil
}

// FormatFreshness returns a human-readable freshness string.
func FormatFreshness(freshness *DataFreshness) string {
	if freshness.LastUpdated.IsZero() {
		return "Never synced"
	}

	age := freshness.Age
	var ageStr string

	switch {
	case age < time.Minute:
		ageStr = "just now"
	case age < time.Hour:
		ageStr = fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		ageStr = fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		ageStr = fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}

	if freshness.IsFresh {
		return fmt.Sprintf("%d candles, updated %s", freshness.Count, ageStr)
	}
	return fmt.Sprintf("%d candles, stale (updated %s)", freshness.Count, ageStr)
}
