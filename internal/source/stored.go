package source

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
	"github.com/Azmorus/GPTScreener/internal/models"
	"github.com/Azmorus/GPTScreener/internal/store"
)

// StoreSourceName identifies series served from the local candle store.
const StoreSourceName = "sqlite"

// DefaultStoreLimit is how many recent candles StoreSource reads.
const DefaultStoreLimit = 500

// StoreSource serves the most recent stored closes of a symbol.
type StoreSource struct {
	store     store.CandleStore
	timeframe models.Timeframe
	limit     int
}

// NewStoreSource creates a source reading up to limit candles of timeframe.
func NewStoreSource(s store.CandleStore, timeframe models.Timeframe, limit int) *StoreSource {
	if limit <= 0 {
		limit = DefaultStoreLimit
	}
	if timeframe == "" {
		timeframe = models.Timeframe1Day
	}
	return &StoreSource{store: s, timeframe: timeframe, limit: limit}
}

func (s *StoreSource) Name() string {
	return StoreSourceName
}

func (s *StoreSource) Fetch(ctx context.Context, symbol string) (*RawSeries, error) {
	candles, err := s.store.GetRecentCandles(ctx, symbol, s.timeframe, s.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabaseError, err)
	}
	if len(candles) == 0 {
		return nil, apperrors.NewDataError(string(s.timeframe)+" candles", symbol, "nothing stored", apperrors.ErrDataNotFound)
	}

	values := make([]interface{}, len(candles))
	for i, c := range candles {
		values[i] = c.Close
	}

	return &RawSeries{
		Symbol:    symbol,
		Source:    StoreSourceName,
		Values:    values,
		FetchedAt: time.Now().UTC(),
	}, nil
}
