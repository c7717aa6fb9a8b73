package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errUpstream = errors.New("upstream down")

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("twelvedata", Config{
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
	})
	cb.now = clock.Now
	return cb, clock
}

func fail(context.Context) error { return errUpstream }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: error = %v, want upstream error", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("State() = %s, want OPEN", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, apperrors.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("function ran while the circuit was open")
	}
	if got := cb.Stats().TotalRejected; got != 1 {
		t.Errorf("TotalRejected = %d, want 1", got)
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)

	if cb.State() != CircuitClosed {
		t.Errorf("State() = %s, want CLOSED", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	var transitions []string
	cb.OnStateChange = func(_ string, from, to CircuitState) {
		transitions = append(transitions, string(from)+">"+string(to))
	}

	_ = cb.Execute(ctx, fail)
	clock.Advance(2 * time.Minute)

	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State() = %s, want CLOSED", cb.State())
	}

	want := []string{"CLOSED>OPEN", "OPEN>HALF_OPEN", "HALF_OPEN>CLOSED"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(2 * time.Minute)
	_ = cb.Execute(ctx, fail)

	if cb.State() != CircuitOpen {
		t.Fatalf("State() = %s, want OPEN", cb.State())
	}
	if err := cb.Execute(ctx, succeed); !errors.Is(err, apperrors.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen before the cooldown", err)
	}
}

func TestCircuitBreaker_CancellationNotCounted(t *testing.T) {
	cb, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("State() = %s, want CLOSED", cb.State())
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb, _ := newTestBreaker(2)

	v, err := ExecuteWithResult(cb, context.Background(), func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || v != 42 {
		t.Errorf("ExecuteWithResult() = %d, %v; want 42, nil", v, err)
	}

	stats := cb.Stats()
	if stats.TotalRequests != 1 || stats.FailureRate() != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}
