package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := newFakeClock()
	cb := New(Config{
		Name:            "test",
		Threshold:       threshold,
		Cooldown:        10 * time.Second,
		HalfOpenTimeout: 5 * time.Second,
		Clock:           clock.Now,
	})
	return cb, clock
}

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{})

	if cb.threshold != 5 {
		t.Errorf("Expected default threshold 5, got %d", cb.threshold)
	}
	if cb.cooldown != time.Minute {
		t.Errorf("Expected default cooldown 1m, got %v", cb.cooldown)
	}
	if cb.halfOpenTimeout != 30*time.Second {
		t.Errorf("Expected default halfOpenTimeout 30s, got %v", cb.halfOpenTimeout)
	}
	if cb.name != "default" {
		t.Errorf("Expected default name 'default', got %q", cb.name)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("Expected CLOSED after %d failures, got %s", i+1, cb.State())
		}
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after threshold, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected Allow() to return false while OPEN")
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	if cb.State() != StateClosed {
		t.Errorf("Expected CLOSED since failures are not consecutive, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name      string
		outcome   func(cb *CircuitBreaker)
		wantState State
	}{
		{"probe success closes", (*CircuitBreaker).RecordSuccess, StateClosed},
		{"probe failure reopens", (*CircuitBreaker).RecordFailure, StateOpen},
		{"probe cancelled reopens", (*CircuitBreaker).RecordCancelled, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(1)
			cb.RecordFailure()

			clock.Advance(10 * time.Second)
			if !cb.Allow() {
				t.Fatal("Expected probe to be allowed after cooldown")
			}
			if cb.State() != StateHalfOpen {
				t.Fatalf("Expected HALF-OPEN, got %s", cb.State())
			}
			if cb.Allow() {
				t.Fatal("Expected only one probe in HALF-OPEN")
			}

			tt.outcome(cb)
			if cb.State() != tt.wantState {
				t.Errorf("Expected %s, got %s", tt.wantState, cb.State())
			}
		})
	}
}

func TestCircuitBreaker_CancelledProbeAllowsImmediateRetry(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordFailure()
	clock.Advance(10 * time.Second)
	cb.Allow()

	cb.RecordCancelled()

	if !cb.Allow() {
		t.Error("Expected a new probe right after a cancelled one")
	}
}

func TestCircuitBreaker_HalfOpenTimeout(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordFailure()
	clock.Advance(10 * time.Second)
	cb.Allow()

	clock.Advance(5 * time.Second)
	if cb.Allow() {
		t.Error("Expected Allow() false once the probe window expired")
	}
	if cb.State() != StateOpen {
		t.Errorf("Expected OPEN after probe timeout, got %s", cb.State())
	}
}

func TestCircuitBreaker_TimeUntilRetry(t *testing.T) {
	cb, clock := newTestBreaker(1)

	if got := cb.TimeUntilRetry(); got != 0 {
		t.Errorf("Expected 0 while CLOSED, got %v", got)
	}

	cb.RecordFailure()
	clock.Advance(4 * time.Second)
	if got := cb.TimeUntilRetry(); got != 6*time.Second {
		t.Errorf("Expected 6s remaining, got %v", got)
	}

	clock.Advance(20 * time.Second)
	if got := cb.TimeUntilRetry(); got != 0 {
		t.Errorf("Expected 0 after cooldown, got %v", got)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.RecordFailure()
	cb.Reset()

	state, failures, openedAt := cb.Stats()
	if state != StateClosed || failures != 0 || !openedAt.IsZero() {
		t.Errorf("Expected clean CLOSED breaker, got %s %d %v", state, failures, openedAt)
	}
}

func TestExecute(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("success", func(t *testing.T) {
		cb, _ := newTestBreaker(1)
		err := cb.Execute(context.Background(), func(context.Context) error { return nil })
		if err != nil || cb.State() != StateClosed {
			t.Errorf("Expected nil error and CLOSED, got %v %s", err, cb.State())
		}
	})

	t.Run("failure trips", func(t *testing.T) {
		cb, _ := newTestBreaker(1)
		err := cb.Execute(context.Background(), func(context.Context) error { return errBoom })
		if !errors.Is(err, errBoom) {
			t.Errorf("Expected fn error to pass through, got %v", err)
		}
		if cb.State() != StateOpen {
			t.Errorf("Expected OPEN, got %s", cb.State())
		}

		called := false
		err = cb.Execute(context.Background(), func(context.Context) error { called = true; return nil })
		if !errors.Is(err, ErrCircuitOpen) || called {
			t.Errorf("Expected ErrCircuitOpen without calling fn, got %v called=%v", err, called)
		}
	})

	t.Run("cancellation is not a failure", func(t *testing.T) {
		cb, _ := newTestBreaker(1)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cb.Execute(ctx, func(context.Context) error { return context.Canceled })
		if cb.State() != StateClosed {
			t.Errorf("Expected CLOSED after cancellation, got %s", cb.State())
		}
		if _, failures, _ := cb.Stats(); failures != 0 {
			t.Errorf("Expected 0 failures, got %d", failures)
		}
	})
}

func TestCircuitBreaker_StateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF-OPEN"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb, _ := newTestBreaker(1000)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cb.Allow()
			if i%2 == 0 {
				cb.RecordFailure()
			} else {
				cb.RecordSuccess()
			}
			cb.State()
			cb.TimeUntilRetry()
		}(i)
	}
	wg.Wait()
}
