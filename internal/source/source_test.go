package source

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
	"github.com/Azmorus/GPTScreener/internal/models"
	"github.com/Azmorus/GPTScreener/internal/resilience"
	"github.com/Azmorus/GPTScreener/internal/store"
)

type fakeSource struct {
	name   string
	mu     sync.Mutex
	calls  int
	result func(call int) (*RawSeries, error)
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, symbol string) (*RawSeries, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.result(call)
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func series(values ...interface{}) *RawSeries {
	return &RawSeries{Values: values}
}

func ok(values ...interface{}) func(int) (*RawSeries, error) {
	return func(int) (*RawSeries, error) { return series(values...), nil }
}

func failing(err error) func(int) (*RawSeries, error) {
	return func(int) (*RawSeries, error) { return nil, err }
}

var errDown = errors.New("provider down")

func TestFacade_PrimarySucceeds(t *testing.T) {
	primary := &fakeSource{name: "primary", result: ok("1", "2")}
	fallback := &fakeSource{name: "fallback", result: ok("3")}
	f := NewFacade(primary, WithFallback(fallback), WithRetryDelay(0))

	rs, err := f.Fetch(context.Background(), " aapl ")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if rs.Source != "primary" || rs.Symbol != "AAPL" || rs.Len() != 2 {
		t.Errorf("Fetch() = %+v", rs)
	}
	if fallback.Calls() != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.Calls())
	}
}

func TestFacade_FallsBackOnce(t *testing.T) {
	primary := &fakeSource{name: "primary", result: failing(errDown)}
	fallback := &fakeSource{name: "fallback", result: ok("3", "4")}

	var observed []string
	f := NewFacade(primary,
		WithFallback(fallback),
		WithRetryDelay(0),
		WithObserver(func(src, _ string, _ int, _ time.Duration, err error) {
			observed = append(observed, src)
		}),
	)

	rs, err := f.Fetch(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if rs.Source != "fallback" {
		t.Errorf("Source = %q, want fallback", rs.Source)
	}
	if primary.Calls() != 1 || fallback.Calls() != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 1 and 1", primary.Calls(), fallback.Calls())
	}
	if len(observed) != 2 || observed[0] != "primary" || observed[1] != "fallback" {
		t.Errorf("observed = %v", observed)
	}
}

func TestFacade_RetriesPrimaryWithoutFallback(t *testing.T) {
	primary := &fakeSource{name: "primary", result: func(call int) (*RawSeries, error) {
		if call == 1 {
			return nil, errDown
		}
		return series(1.0), nil
	}}
	f := NewFacade(primary, WithRetryDelay(0))

	if _, err := f.Fetch(context.Background(), "AAPL"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if primary.Calls() != 2 {
		t.Errorf("primary calls = %d, want 2", primary.Calls())
	}
}

func TestFacade_BothFail(t *testing.T) {
	primary := &fakeSource{name: "primary", result: failing(errDown)}
	fallback := &fakeSource{name: "fallback", result: ok()}
	f := NewFacade(primary, WithFallback(fallback), WithRetryDelay(0))

	_, err := f.Fetch(context.Background(), "AAPL")
	var srcErr *apperrors.SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("error = %v, want *SourceError", err)
	}
	if srcErr.Source != "fallback" || srcErr.Symbol != "AAPL" {
		t.Errorf("SourceError = %+v", srcErr)
	}
	// The fallback returned nothing, which counts as not found.
	if !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("error = %v, want ErrDataNotFound", err)
	}
	if primary.Calls()+fallback.Calls() != 2 {
		t.Errorf("total calls = %d, want 2", primary.Calls()+fallback.Calls())
	}
}

func TestFacade_InvalidSymbolNotFetched(t *testing.T) {
	primary := &fakeSource{name: "primary", result: ok("1")}
	f := NewFacade(primary, WithRetryDelay(0))

	for _, sym := range []string{"", "   ", "AAPL;DROP", "ABCDEFGHIJKLMNOPQRSTUVWXYZ"} {
		if _, err := f.Fetch(context.Background(), sym); !errors.Is(err, apperrors.ErrInputValidation) {
			t.Errorf("Fetch(%q) error = %v, want ErrInputValidation", sym, err)
		}
	}
	if primary.Calls() != 0 {
		t.Errorf("primary calls = %d, want 0", primary.Calls())
	}
}

func TestFacade_CancelledContextNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &fakeSource{name: "primary", result: func(int) (*RawSeries, error) {
		cancel()
		return nil, context.Canceled
	}}
	fallback := &fakeSource{name: "fallback", result: ok("1")}
	f := NewFacade(primary, WithFallback(fallback), WithRetryDelay(0))

	_, err := f.Fetch(ctx, "AAPL")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if fallback.Calls() != 0 {
		t.Errorf("fallback calls = %d, want 0", fallback.Calls())
	}
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{"aapl", "AAPL", false},
		{" BRK.B ", "BRK.B", false},
		{"M&M", "M&M", false},
		{"BAJAJ-AUTO", "BAJAJ-AUTO", false},
		{"", "", true},
		{"A B", "", true},
		{"$SPX", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeSymbol(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", errors.New("connection refused")
	}
	v, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func TestCachedSource_HitAfterMiss(t *testing.T) {
	next := &fakeSource{name: "twelvedata", result: ok("101.5", "102.25")}
	kv := newMemKV()
	c := NewCachedSource(next, kv, time.Minute, zerolog.Nop())

	for i := 0; i < 3; i++ {
		rs, err := c.Fetch(context.Background(), "AAPL")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if rs.Len() != 2 || rs.Values[1] != "102.25" {
			t.Errorf("Fetch() values = %v", rs.Values)
		}
	}
	if next.Calls() != 1 {
		t.Errorf("underlying calls = %d, want 1", next.Calls())
	}

	key := "screener:series:twelvedata:AAPL"
	if c.CacheKey("AAPL") != key {
		t.Errorf("CacheKey() = %q, want %q", c.CacheKey("AAPL"), key)
	}
	if kv.ttls[key] != time.Minute {
		t.Errorf("ttl = %v, want 1m", kv.ttls[key])
	}
}

func TestCachedSource_DegradesOnCacheFailure(t *testing.T) {
	next := &fakeSource{name: "twelvedata", result: ok("1")}
	kv := newMemKV()
	kv.failGet = true
	c := NewCachedSource(next, kv, 0, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(context.Background(), "AAPL"); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if next.Calls() != 2 {
		t.Errorf("underlying calls = %d, want 2", next.Calls())
	}
}

func TestCachedSource_ErrorsNotCached(t *testing.T) {
	next := &fakeSource{name: "twelvedata", result: failing(errDown)}
	kv := newMemKV()
	c := NewCachedSource(next, kv, 0, zerolog.Nop())

	if _, err := c.Fetch(context.Background(), "AAPL"); !errors.Is(err, errDown) {
		t.Fatalf("Fetch() error = %v, want errDown", err)
	}
	if len(kv.data) != 0 {
		t.Errorf("cache holds %d entries after a failure", len(kv.data))
	}
}

func TestWithBreaker_FailsFastWhenOpen(t *testing.T) {
	next := &fakeSource{name: "twelvedata", result: failing(errDown)}
	cb := resilience.NewCircuitBreaker("twelvedata", resilience.Config{FailureThreshold: 2, Cooldown: time.Hour})
	src := WithBreaker(next, cb)

	for i := 0; i < 2; i++ {
		_, _ = src.Fetch(context.Background(), "AAPL")
	}
	if _, err := src.Fetch(context.Background(), "AAPL"); !errors.Is(err, apperrors.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if next.Calls() != 2 {
		t.Errorf("underlying calls = %d, want 2", next.Calls())
	}
	if src.Name() != "twelvedata" {
		t.Errorf("Name() = %q", src.Name())
	}
}

func TestStoreSource_Fetch(t *testing.T) {
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "candles.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer db.Close()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, models.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      100, High: 101, Low: 99,
			Close:  100 + float64(i),
			Volume: 1000,
		})
	}
	ctx := context.Background()
	if err := db.SaveCandles(ctx, "INFY", models.Timeframe1Day, candles); err != nil {
		t.Fatalf("SaveCandles() error = %v", err)
	}

	src := NewStoreSource(db, models.Timeframe1Day, 3)
	rs, err := src.Fetch(ctx, "INFY")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := []float64{102, 103, 104}
	if rs.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", rs.Len(), len(want))
	}
	for i, w := range want {
		if rs.Values[i] != w {
			t.Errorf("Values[%d] = %v, want %v", i, rs.Values[i], w)
		}
	}

	if _, err := src.Fetch(ctx, "TCS"); !errors.Is(err, apperrors.ErrDataNotFound) {
		t.Errorf("Fetch(TCS) error = %v, want ErrDataNotFound", err)
	}
}
