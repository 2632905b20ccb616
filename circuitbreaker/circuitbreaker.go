// Package circuitbreaker guards the remote search provider. After Threshold
// consecutive failures it opens and rejects calls for Cooldown, then lets a
// single probe through (half-open) to decide whether to close again.
// Cancelled calls never count as failures.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"music-search-api-go/logcolors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit tripped, requests blocked
	StateHalfOpen              // Testing if service recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

var stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "music_search_circuit_breaker_state",
	Help: "Circuit breaker state (0 closed, 1 open, 2 half-open).",
}, []string{"name"})

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name            string
	state           State
	failures        int           // consecutive failures
	threshold       int           // failures before opening
	cooldown        time.Duration // how long to stay open
	halfOpenTimeout time.Duration // max time to wait for the half-open probe
	openedAt        time.Time
	halfOpenStart   time.Time
	now             func() time.Time
	mu              sync.RWMutex
}

// Config holds circuit breaker configuration
type Config struct {
	Name            string
	Threshold       int
	Cooldown        time.Duration
	HalfOpenTimeout time.Duration
	// Clock overrides time.Now; used by tests.
	Clock func() time.Time
}

func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	cb := &CircuitBreaker{
		name:            cfg.Name,
		state:           StateClosed,
		threshold:       cfg.Threshold,
		cooldown:        cfg.Cooldown,
		halfOpenTimeout: cfg.HalfOpenTimeout,
		now:             cfg.Clock,
	}
	cb.publish()
	return cb
}

// Allow reports whether a call may proceed. An OPEN breaker whose cooldown
// has elapsed moves to HALF-OPEN and admits exactly one probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.cooldown {
			cb.setState(StateHalfOpen)
			cb.halfOpenStart = cb.now()
			log.Infof("%s Cooldown passed, transitioning to HALF-OPEN", logcolors.CircuitBreakerPrefix(cb.name))
			return true
		}
		return false

	case StateHalfOpen:
		if cb.now().Sub(cb.halfOpenStart) >= cb.halfOpenTimeout {
			// probe never reported back
			cb.trip()
			log.Warnf("%s Half-open probe timed out, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
		}
		return false

	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.failures = 0
		cb.setState(StateClosed)
		log.Infof("%s Probe succeeded, transitioning to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
	case StateClosed:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++

	switch cb.state {
	case StateHalfOpen:
		cb.trip()
		log.Warnf("%s Probe failed, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
	case StateClosed:
		if cb.failures >= cb.threshold {
			cb.trip()
			log.Warnf("%s Threshold reached (%d failures), transitioning to OPEN (cooldown: %v)",
				logcolors.CircuitBreakerPrefix(cb.name), cb.failures, cb.cooldown)
		}
	}
}

// RecordCancelled releases a half-open probe that was cancelled by its caller
// so the next call can probe straight away. Failure counts are untouched.
func (cb *CircuitBreaker) RecordCancelled() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.setState(StateOpen)
		cb.openedAt = cb.now().Add(-cb.cooldown)
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
// It returns ErrCircuitOpen without calling fn when the breaker rejects the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	switch {
	case ctx.Err() != nil:
		cb.RecordCancelled()
	case err != nil:
		cb.RecordFailure()
	default:
		cb.RecordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) trip() {
	cb.setState(StateOpen)
	cb.openedAt = cb.now()
}

func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.publish()
}

func (cb *CircuitBreaker) publish() {
	stateGauge.WithLabelValues(cb.name).Set(float64(cb.state))
}

func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() (state State, failures int, openedAt time.Time) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state, cb.failures, cb.openedAt
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.halfOpenStart = time.Time{}
	log.Infof("%s Manually reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
}

// TimeUntilRetry returns the remaining cooldown while OPEN, the remaining
// probe window while HALF-OPEN, and 0 when CLOSED.
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	var remaining time.Duration
	switch cb.state {
	case StateOpen:
		remaining = cb.cooldown - cb.now().Sub(cb.openedAt)
	case StateHalfOpen:
		remaining = cb.halfOpenTimeout - cb.now().Sub(cb.halfOpenStart)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (cb *CircuitBreaker) Threshold() int {
	return cb.threshold
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}
