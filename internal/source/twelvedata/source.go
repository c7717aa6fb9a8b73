package twelvedata

import (
	"context"
	"time"

	"github.com/Azmorus/GPTScreener/internal/models"
	"github.com/Azmorus/GPTScreener/internal/source"
)

// SourceName identifies series fetched from Twelve Data.
const SourceName = "twelvedata"

const (
	DefaultInterval   = models.Timeframe1Day
	DefaultOutputSize = 365
)

// Source adapts a Client to source.Source.
type Source struct {
	client     *Client
	interval   models.Timeframe
	outputSize int
}

// NewSource creates a source fetching outputSize bars of interval per lookup.
func NewSource(client *Client, interval models.Timeframe, outputSize int) *Source {
	if interval == "" {
		interval = DefaultInterval
	}
	if outputSize <= 0 {
		outputSize = DefaultOutputSize
	}
	return &Source{client: client, interval: interval, outputSize: outputSize}
}

func (s *Source) Name() string {
	return SourceName
}

// Fetch returns the close prices as the API's raw strings.
func (s *Source) Fetch(ctx context.Context, symbol string) (*source.RawSeries, error) {
	ts, err := s.client.TimeSeries(ctx, symbol, string(s.interval), s.outputSize)
	if err != nil {
		return nil, err
	}

	closes := ts.Closes()
	values := make([]interface{}, len(closes))
	for i, c := range closes {
		values[i] = c
	}

	return &source.RawSeries{
		Symbol:    symbol,
		Source:    SourceName,
		Values:    values,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Candles fetches full OHLCV candles for storage.
func (s *Source) Candles(ctx context.Context, symbol string) ([]models.Candle, error) {
	ts, err := s.client.TimeSeries(ctx, symbol, string(s.interval), s.outputSize)
	if err != nil {
		return nil, err
	}
	return ts.Candles(), nil
}

// Interval returns the bar interval requested from the API.
func (s *Source) Interval() models.Timeframe {
	return s.interval
}

// Quote fetches the latest quote and fundamentals snapshot for symbol.
func (s *Source) Quote(ctx context.Context, symbol string) (*Quote, error) {
	return s.client.Quote(ctx, symbol)
}
