package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream 503")

func TestCircuitBreaker_BasicTransitions(t *testing.T) {
	var mu sync.Mutex
	var transitions []CircuitState
	b := NewCircuitBreaker("cricbuzz", CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 2,
		OpenTimeout:      20 * time.Millisecond,
		HalfOpenMaxReq:   1,
	}, nil, func(_ string, _, to CircuitState) {
		mu.Lock()
		transitions = append(transitions, to)
		mu.Unlock()
	})

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected call in closed state: %v", err)
	}

	_ = b.Execute(func() error { return errUpstream })
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after first failure, got %s", state)
	}

	_ = b.Execute(func() error { return errUpstream })
	if state := b.State(); state != CircuitStateOpen {
		t.Fatalf("expected open after threshold failures, got %s", state)
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("expected short-circuit, got err=%v called=%v", err, called)
	}

	time.Sleep(30 * time.Millisecond)
	if state := b.State(); state != CircuitStateHalfOpen {
		t.Fatalf("expected half-open state, got %s", state)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open trial request to pass, got %v", err)
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("expected closed after successful half-open trial request, got %s", state)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []CircuitState{CircuitStateOpen, CircuitStateHalfOpen, CircuitStateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("unexpected transitions: %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("unexpected transitions: %v", transitions)
		}
	}
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	errMissing := errors.New("404")
	b := NewCircuitBreaker("cricbuzz", CircuitBreakerConfig{Enabled: true, FailureThreshold: 1}, func(err error) bool {
		return !errors.Is(err, errMissing)
	}, nil)

	for i := 0; i < 5; i++ {
		if err := b.Execute(func() error { return errMissing }); !errors.Is(err, errMissing) {
			t.Fatalf("expected passthrough error, got %v", err)
		}
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("non-failures must not trip the breaker, got %s", state)
	}
}

func TestCircuitBreaker_Disabled(t *testing.T) {
	b := NewCircuitBreaker("cricbuzz", CircuitBreakerConfig{Enabled: false, FailureThreshold: 1}, nil, nil)
	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errUpstream }); !errors.Is(err, errUpstream) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	}
	if state := b.State(); state != CircuitStateClosed {
		t.Fatalf("disabled breaker reports closed, got %s", state)
	}

	var nilBreaker *CircuitBreaker
	if err := nilBreaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("nil breaker must run the call: %v", err)
	}
}

func TestCircuitBreakerConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	got := CircuitBreakerConfig{Enabled: true, FailureThreshold: 3}.withDefaults()
	if got.FailureThreshold != 3 {
		t.Fatalf("explicit threshold must be kept, got %d", got.FailureThreshold)
	}
	if got.OpenTimeout != 15*time.Second || got.HalfOpenMaxReq != 2 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}
