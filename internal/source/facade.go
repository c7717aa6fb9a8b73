package source

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
)

// DefaultRetryDelay is the pause before the second attempt of a lookup.
const DefaultRetryDelay = 250 * time.Millisecond

// FetchObserver is told about every provider attempt the facade makes.
type FetchObserver func(source, symbol string, count int, elapsed time.Duration, err error)

// Facade resolves a symbol to a raw price series. It asks the primary source
// first and, if that fails, makes exactly one more attempt: against the
// fallback when one is configured, otherwise against the primary again.
type Facade struct {
	primary    Source
	fallback   Source
	retryDelay time.Duration
	observe    FetchObserver
}

// Option configures a Facade.
type Option func(*Facade)

// WithFallback sets the source used for the second attempt.
func WithFallback(s Source) Option {
	return func(f *Facade) {
		f.fallback = s
	}
}

// WithRetryDelay sets the pause before the second attempt. Zero retries at once.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Facade) {
		if d >= 0 {
			f.retryDelay = d
		}
	}
}

// WithObserver registers a callback invoked after every attempt.
func WithObserver(fn FetchObserver) Option {
	return func(f *Facade) {
		f.observe = fn
	}
}

// NewFacade creates a facade over primary.
func NewFacade(primary Source, opts ...Option) *Facade {
	f := &Facade{
		primary:    primary,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name identifies the facade by its primary source.
func (f *Facade) Name() string {
	return f.primary.Name()
}

// Fetch validates symbol and returns the first non-empty series obtained within
// two attempts. An invalid symbol fails without contacting any source. When both
// attempts fail the error is a *errors.SourceError wrapping the last failure.
func (f *Facade) Fetch(ctx context.Context, symbol string) (*RawSeries, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var (
		result  *RawSeries
		attempt int
		lastSrc = f.primary.Name()
	)

	operation := func() error {
		src := f.primary
		if attempt > 0 && f.fallback != nil {
			src = f.fallback
		}
		attempt++
		lastSrc = src.Name()

		start := time.Now()
		rs, err := src.Fetch(ctx, sym)
		if err == nil && rs.Len() == 0 {
			err = apperrors.Wrapf(apperrors.ErrDataNotFound, "%s returned no prices for %s", src.Name(), sym)
		}
		if f.observe != nil {
			f.observe(src.Name(), sym, rs.Len(), time.Since(start), err)
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, apperrors.ErrInputValidation) {
				return backoff.Permanent(err)
			}
			return err
		}

		if rs.Source == "" {
			rs.Source = src.Name()
		}
		if rs.Symbol == "" {
			rs.Symbol = sym
		}
		result = rs
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(f.newBackOff(), 1), ctx)); err != nil {
		return nil, apperrors.NewSourceError(lastSrc, sym, err)
	}

	return result, nil
}

func (f *Facade) newBackOff() backoff.BackOff {
	if f.retryDelay == 0 {
		return &backoff.ZeroBackOff{}
	}
	return backoff.NewConstantBackOff(f.retryDelay)
}
