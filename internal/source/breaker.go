package source

import (
	"context"

	"github.com/Azmorus/GPTScreener/internal/resilience"
)

type breakerSource struct {
	next Source
	cb   *resilience.CircuitBreaker
}

// WithBreaker guards s with cb. While the circuit is open Fetch fails fast
// with errors.ErrCircuitOpen.
func WithBreaker(s Source, cb *resilience.CircuitBreaker) Source {
	if cb == nil {
		return s
	}
	return &breakerSource{next: s, cb: cb}
}

func (b *breakerSource) Name() string {
	return b.next.Name()
}

func (b *breakerSource) Fetch(ctx context.Context, symbol string) (*RawSeries, error) {
	return resilience.ExecuteWithResult(b.cb, ctx, func(ctx context.Context) (*RawSeries, error) {
		return b.next.Fetch(ctx, symbol)
	})
}
