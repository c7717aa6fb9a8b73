package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Azmorus/GPTScreener/internal/models"
)

func TestSQLiteStore_GetCandlesRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	candles := generateTestCandles(10, 100)
	if err := s.SaveCandles(ctx, "tcs", models.Timeframe1Day, candles); err != nil {
		t.Fatalf("SaveCandles() error = %v", err)
	}

	got, err := s.GetCandles(ctx, "TCS", models.Timeframe1Day, candles[2].Timestamp, candles[5].Timestamp)
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("GetCandles() len = %d, want 4", len(got))
	}
	if !candlesEqual(got[0], candles[2]) {
		t.Errorf("first = %+v, want %+v", got[0], candles[2])
	}
}

func TestSQLiteStore_EmptyAndInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveCandles(ctx, "X", models.Timeframe1Day, nil); err != nil {
		t.Errorf("SaveCandles(nil) error = %v", err)
	}
	if _, err := s.GetRecentCandles(ctx, "X", models.Timeframe1Day, 0); err == nil {
		t.Error("GetRecentCandles(limit=0) should fail")
	}
	got, err := s.GetRecentCandles(ctx, "MISSING", models.Timeframe1Day, 10)
	if err != nil || len(got) != 0 {
		t.Errorf("GetRecentCandles(MISSING) = %v, %v", got, err)
	}
}

func TestCheckFreshness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f, err := CheckFreshness(ctx, s, "INFY", models.Timeframe1Day, 0, time.Now())
	if err != nil {
		t.Fatalf("CheckFreshness() error = %v", err)
	}
	if f.IsFresh || !f.LastUpdated.IsZero() || FormatFreshness(f) != "Never synced" {
		t.Errorf("empty store freshness = %+v (%s)", f, FormatFreshness(f))
	}

	candles := generateTestCandles(3, 100)
	if err := s.SaveCandles(ctx, "INFY", models.Timeframe1Day, candles); err != nil {
		t.Fatalf("SaveCandles() error = %v", err)
	}
	last := candles[2].Timestamp

	f, err = CheckFreshness(ctx, s, "INFY", models.Timeframe1Day, 48*time.Hour, last.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("CheckFreshness() error = %v", err)
	}
	if !f.IsFresh || f.Count != 3 || !f.LastUpdated.Equal(last) {
		t.Errorf("freshness = %+v", f)
	}
	if got := FormatFreshness(f); got != "3 candles, updated 2 hours ago" {
		t.Errorf("FormatFreshness() = %q", got)
	}

	f, _ = CheckFreshness(ctx, s, "INFY", models.Timeframe1Day, 48*time.Hour, last.AddDate(0, 0, 5))
	if f.IsFresh {
		t.Error("five-day-old data reported fresh")
	}
}

func TestParseCandlesCSV(t *testing.T) {
	input := strings.Join([]string{
		"Date,Open,High,Low,Close,Volume",
		"2024-01-02,187.15,188.44,183.89,185.64,82488700",
		"2024-01-03,184.22,185.88,183.43,184.25,58414500",
		"2024-01-04,182.15,bad,180.88,181.91,71983600",
		"2024-01-05,181.99,182.76,180.17,181.18",
		"not-a-date,1,2,3,4",
	}, "\n")

	res, err := ParseCandlesCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCandlesCSV() error = %v", err)
	}
	if len(res.Candles) != 3 {
		t.Fatalf("candles = %d, want 3", len(res.Candles))
	}
	if res.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", res.Skipped)
	}
	if res.Candles[0].Close != 185.64 || res.Candles[0].Volume != 82488700 {
		t.Errorf("first candle = %+v", res.Candles[0])
	}
	if res.Candles[2].Volume != 0 {
		t.Errorf("missing volume = %d, want 0", res.Candles[2].Volume)
	}
}

func TestParseCandlesCSV_SortsByDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []float64
	}{
		{"newest first", "date,close\n2024-03-03,103\n2024-03-02,102\n2024-03-01,101\n", []float64{101, 102, 103}},
		{"oldest first", "date,close\n2024-03-01,101\n2024-03-02,102\n2024-03-03,103\n", []float64{101, 102, 103}},
		{"shuffled", "2024-03-02,102\n2024-03-03,103\n2024-03-01,101\n", []float64{101, 102, 103}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseCandlesCSV(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ParseCandlesCSV() error = %v", err)
			}
			if len(res.Candles) != len(tt.want) {
				t.Fatalf("candles = %d, want %d", len(res.Candles), len(tt.want))
			}
			for i, c := range res.Candles {
				if c.Close != tt.want[i] {
					t.Errorf("candle[%d].Close = %v, want %v", i, c.Close, tt.want[i])
				}
			}
		})
	}
}

func TestParseCandlesCSV_CloseOnly(t *testing.T) {
	res, err := ParseCandlesCSV(strings.NewReader("2024-02-01,\"1,234.50\"\n2024-02-02,1236\n"))
	if err != nil {
		t.Fatalf("ParseCandlesCSV() error = %v", err)
	}
	if len(res.Candles) != 2 || res.Candles[0].Close != 1234.5 || res.Candles[0].Open != 1234.5 {
		t.Errorf("candles = %+v", res.Candles)
	}
}
