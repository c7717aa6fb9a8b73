// Package models provides the market data records shared by the sources and
// the candle store.
package models

import (
	"time"
)

// Timeframe is a candle interval as named by the data providers.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1min"
	Timeframe5Min  Timeframe = "5min"
	Timeframe15Min Timeframe = "15min"
	Timeframe1Hour Timeframe = "1h"
	Timeframe1Day  Timeframe = "1day"
	Timeframe1Week Timeframe = "1week"
)

// Valid reports whether tf is a known timeframe.
func (tf Timeframe) Valid() bool {
	switch tf {
	case Timeframe1Min, Timeframe5Min, Timeframe15Min, Timeframe1Hour, Timeframe1Day, Timeframe1Week:
		return true
	}
	return false
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Closes extracts the closing prices of candles in order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
