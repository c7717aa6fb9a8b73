// Package source provides the acquisition boundary of the screener: the
// Source interface implemented by price providers and the Facade that picks a
// primary or fallback provider for each lookup.
package source

import (
	"context"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
)

// RawSeries is an unnormalized closing price sequence, oldest first, exactly as
// a provider returned it.
type RawSeries struct {
	Symbol    string        `json:"symbol"`
	Source    string        `json:"source"`
	Values    []interface{} `json:"values"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Len returns the number of raw values.
func (r *RawSeries) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}

// Source fetches the closing prices of a symbol.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (*RawSeries, error)
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.&-]{1,20}$`)

// NormalizeSymbol trims and upper-cases symbol and checks it against the
// accepted ticker format.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	if s == "" {
		return "", apperrors.NewValidationError("symbol", symbol, "symbol cannot be empty")
	}
	if len(s) > 20 {
		return "", apperrors.NewValidationError("symbol", symbol, "symbol too long (max 20 characters)")
	}
	if !symbolPattern.MatchString(s) {
		return "", apperrors.NewValidationError("symbol", symbol, "invalid symbol format")
	}

	return s, nil
}
