package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Series is an immutable, ordered sequence of closing prices, oldest first.
// Every value is finite.
type Series struct {
	closes []float64
}

// ParseResult is the outcome of normalizing raw price values.
type ParseResult struct {
	Series Series
	// Dropped counts the raw elements that could not be normalized.
	Dropped int
	// DroppedIndexes holds the positions of the dropped elements in the raw input.
	DroppedIndexes []int
}

// Normalize converts raw price-like values into a Series.
//
// Strings may carry surrounding whitespace and grouping commas ("1,234.5").
// Elements that cannot be turned into a finite number are dropped, never coerced
// to zero, and reported in the result.
func Normalize(raw []interface{}) ParseResult {
	closes := make([]float64, 0, len(raw))
	var dropped []int

	for i, v := range raw {
		price, ok := parsePrice(v)
		if !ok {
			dropped = append(dropped, i)
			continue
		}
		closes = append(closes, price)
	}

	return ParseResult{
		Series:         Series{closes: closes},
		Dropped:        len(dropped),
		DroppedIndexes: dropped,
	}
}

// NormalizeStrings is Normalize for string input.
func NormalizeStrings(raw []string) ParseResult {
	values := make([]interface{}, len(raw))
	for i, s := range raw {
		values[i] = s
	}
	return Normalize(values)
}

// FromFloats builds a Series from already numeric closes, dropping non-finite values.
func FromFloats(closes []float64) ParseResult {
	values := make([]interface{}, len(closes))
	for i, c := range closes {
		values[i] = c
	}
	return Normalize(values)
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.closes)
}

// At returns the observation at index i.
func (s Series) At(i int) float64 {
	return s.closes[i]
}

// Last returns the most recent observation. The series must not be empty.
func (s Series) Last() float64 {
	return s.closes[len(s.closes)-1]
}

// Closes returns a copy of the observations.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.closes))
	copy(out, s.closes)
	return out
}

// Tail returns a copy of the trailing n observations, or all of them when fewer exist.
func (s Series) Tail(n int) []float64 {
	if n > len(s.closes) {
		n = len(s.closes)
	}
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	copy(out, s.closes[len(s.closes)-n:])
	return out
}

func parsePrice(v interface{}) (float64, bool) {
	var f float64

	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		return parsePriceString(x.String())
	case string:
		return parsePriceString(x)
	default:
		return 0, false
	}

	return f, isFinite(f)
}

func parsePriceString(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, isFinite(f)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
