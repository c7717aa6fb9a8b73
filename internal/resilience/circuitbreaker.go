// Package resilience provides the circuit breaker guarding price data sources.
package resilience

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that closes it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before letting a probe through.
	Cooldown time.Duration
}

// DefaultConfig returns the breaker settings used for data sources.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency until a cooldown elapses.
type CircuitBreaker struct {
	name   string
	config Config
	now    func() time.Time

	// OnStateChange, when set, is called outside the lock after every transition.
	OnStateChange func(name string, from, to CircuitState)

	mu           sync.Mutex
	state        CircuitState
	failures     int
	successes    int
	openedAt     time.Time
	halfOpenBusy bool

	totalRequests int64
	totalFailures int64
	totalRejected int64
}

// NewCircuitBreaker creates a closed circuit breaker. Zero config fields take
// their DefaultConfig values.
func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	def := DefaultConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = def.Cooldown
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Execute runs fn unless the circuit is open. Context cancellation is not
// counted against the dependency.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := ExecuteWithResult(cb, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// ExecuteWithResult runs fn with circuit breaker protection and returns its value.
func ExecuteWithResult[T any](cb *CircuitBreaker, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	probe, err := cb.allowRequest()
	if err != nil {
		return zero, err
	}

	v, err := fn(ctx)
	switch {
	case err == nil:
		cb.recordSuccess(probe)
	case ctx.Err() != nil:
		cb.release(probe)
	default:
		cb.recordFailure(probe)
	}
	return v, err
}

func (cb *CircuitBreaker) allowRequest() (probe bool, err error) {
	cb.mu.Lock()
	cb.totalRequests++

	var from CircuitState
	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			cb.totalRejected++
			cb.mu.Unlock()
			return false, apperrors.Wrapf(apperrors.ErrCircuitOpen, "source %s", cb.name)
		}
		from = cb.transitionTo(CircuitHalfOpen)
		fallthrough
	case CircuitHalfOpen:
		if cb.halfOpenBusy {
			cb.totalRejected++
			cb.mu.Unlock()
			cb.notify(from, CircuitHalfOpen)
			return false, apperrors.Wrapf(apperrors.ErrCircuitOpen, "source %s probing", cb.name)
		}
		cb.halfOpenBusy = true
		cb.mu.Unlock()
		cb.notify(from, CircuitHalfOpen)
		return true, nil
	}

	cb.mu.Unlock()
	return false, nil
}

func (cb *CircuitBreaker) recordSuccess(probe bool) {
	cb.mu.Lock()
	var from, to CircuitState
	if probe {
		cb.halfOpenBusy = false
	}
	switch cb.state {
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			from, to = cb.transitionTo(CircuitClosed), CircuitClosed
		}
	case CircuitClosed:
		cb.failures = 0
	}
	cb.mu.Unlock()
	cb.notify(from, to)
}

func (cb *CircuitBreaker) recordFailure(probe bool) {
	cb.mu.Lock()
	var from, to CircuitState
	cb.totalFailures++
	if probe {
		cb.halfOpenBusy = false
	}
	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			from, to = cb.transitionTo(CircuitOpen), CircuitOpen
		}
	case CircuitHalfOpen:
		from, to = cb.transitionTo(CircuitOpen), CircuitOpen
	}
	cb.mu.Unlock()
	cb.notify(from, to)
}

func (cb *CircuitBreaker) release(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	cb.halfOpenBusy = false
	cb.mu.Unlock()
}

// transitionTo must be called with cb.mu held. It returns the previous state.
func (cb *CircuitBreaker) transitionTo(state CircuitState) CircuitState {
	from := cb.state
	cb.state = state
	cb.failures = 0
	cb.successes = 0
	if state == CircuitOpen {
		cb.openedAt = cb.now()
	}
	return from
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if from == "" || to == "" || from == to || cb.OnStateChange == nil {
		return
	}
	cb.OnStateChange(cb.name, from, to)
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Stats{
		Name:            cb.name,
		State:           cb.state,
		TotalRequests:   cb.totalRequests,
		TotalFailures:   cb.totalFailures,
		TotalRejected:   cb.totalRejected,
		CurrentFailures: cb.failures,
	}
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.transitionTo(CircuitClosed)
	cb.halfOpenBusy = false
	cb.mu.Unlock()
	cb.notify(from, CircuitClosed)
}

// Stats holds circuit breaker statistics.
type Stats struct {
	Name            string
	State           CircuitState
	TotalRequests   int64
	TotalFailures   int64
	TotalRejected   int64
	CurrentFailures int
}

// FailureRate returns the failure rate as a percentage.
func (s Stats) FailureRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.TotalFailures) / float64(s.TotalRequests) * 100
}
