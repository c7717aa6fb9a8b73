// Package store provides candle persistence backed by SQLite.
package store

import (
	"context"
	"time"

	"github.com/Azmorus/GPTScreener/internal/models"
)

// CandleStore defines the interface for candle persistence.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol string, timeframe models.Timeframe, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, timeframe models.Timeframe, from, to time.Time) ([]models.Candle, error)
	GetRecentCandles(ctx context.Context, symbol string, timeframe models.Timeframe, limit int) ([]models.Candle, error)
	CountCandles(ctx context.Context, symbol string, timeframe models.Timeframe) (int, error)
	GetCandlesFreshness(ctx context.Context, symbol string, timeframe models.Timeframe) (time.Time, error)
	Close() error
}
