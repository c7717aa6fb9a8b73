// Package screener runs the fetch, normalize and detect pipeline for a symbol.
package screener

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Azmorus/GPTScreener/internal/analysis"
	"github.com/Azmorus/GPTScreener/internal/analysis/patterns"
	"github.com/Azmorus/GPTScreener/internal/logging"
	"github.com/Azmorus/GPTScreener/internal/metrics"
	"github.com/Azmorus/GPTScreener/internal/source"
)

// Fetcher resolves a symbol to raw prices. *source.Facade implements it.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (*source.RawSeries, error)
}

// Report is the outcome of screening one symbol.
type Report struct {
	RequestID string          `json:"request_id"`
	Symbol    string          `json:"symbol"`
	Source    string          `json:"source,omitempty"`
	FetchedAt time.Time       `json:"fetched_at,omitempty"`
	Dropped   int             `json:"dropped"`
	Result    analysis.Result `json:"result"`
}

// Service screens symbols. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	fetcher  Fetcher
	detector *patterns.Detector
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewService creates a service. fetcher may be nil when only ScreenValues is
// used; m may be nil to disable metrics.
func NewService(fetcher Fetcher, detector *patterns.Detector, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if detector == nil {
		detector = patterns.NewDetector(nil)
	}
	return &Service{
		fetcher:  fetcher,
		detector: detector,
		metrics:  m,
		logger:   logger.With().Str("component", "screener").Logger(),
	}
}

// Screen fetches symbol's prices and runs detection over them.
func (s *Service) Screen(ctx context.Context, symbol string) (*Report, error) {
	if s.fetcher == nil {
		return nil, errNoFetcher
	}

	requestID := uuid.NewString()
	logger := logging.WithRequestID(logging.WithSymbol(s.logger, symbol), requestID)

	raw, err := s.fetcher.Fetch(logging.WithLogger(ctx, logger), symbol)
	if err != nil {
		logger.Warn().Err(err).Msg("Price lookup failed")
		return nil, err
	}

	sym := raw.Symbol
	if sym == "" {
		sym = symbol
	}
	report := s.detect(logger, requestID, sym, raw.Values)
	report.Source = raw.Source
	report.FetchedAt = raw.FetchedAt
	return report, nil
}

// ScreenValues runs detection over caller-supplied raw prices.
func (s *Service) ScreenValues(ctx context.Context, symbol string, raw []interface{}) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym, err := source.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	logger := logging.WithRequestID(logging.WithSymbol(s.logger, sym), requestID)
	return s.detect(logger, requestID, sym, raw), nil
}

func (s *Service) detect(logger zerolog.Logger, requestID, symbol string, raw []interface{}) *Report {
	start := time.Now()
	parsed := analysis.Normalize(raw)
	result := s.detector.Detect(parsed.Series)
	elapsed := time.Since(start)

	if parsed.Dropped > 0 {
		logger.Debug().Ints("indexes", parsed.DroppedIndexes).Msg("Dropped unparseable prices")
	}
	names := result.Names()
	logging.LogDetection(logger, symbol, string(result.Outcome), names, result.Observations, parsed.Dropped)
	if s.metrics != nil {
		s.metrics.ObserveDetection(string(result.Outcome), names, parsed.Dropped, elapsed)
	}

	return &Report{
		RequestID: requestID,
		Symbol:    symbol,
		Dropped:   parsed.Dropped,
		Result:    result,
	}
}
