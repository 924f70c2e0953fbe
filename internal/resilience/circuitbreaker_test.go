package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a settable clock for breaker tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func fail() error    { return errTest }
func succeed() error { return nil }

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test"})
	if cb.cfg.MaxFailures != 5 {
		t.Errorf("MaxFailures = %d, want 5", cb.cfg.MaxFailures)
	}
	if cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.cfg.ResetTimeout)
	}
	if cb.cfg.HalfOpenMax != 3 {
		t.Errorf("HalfOpenMax = %d, want 3", cb.cfg.HalfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 3, ResetTimeout: time.Hour})

	for range 3 {
		if err := cb.Execute(fail); !errors.Is(err, errTest) {
			t.Fatalf("Execute = %v, want errTest", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while open")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 3})

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	_ = cb.Execute(succeed)
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		probes []func() error
		want   State
	}{
		{name: "enough successes close", probes: []func() error{succeed, succeed}, want: StateClosed},
		{name: "one success stays half-open", probes: []func() error{succeed}, want: StateHalfOpen},
		{name: "failure reopens", probes: []func() error{succeed, fail}, want: StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			cb := NewCircuitBreaker(CircuitBreakerConfig{
				Name:         "test",
				MaxFailures:  1,
				ResetTimeout: time.Minute,
				HalfOpenMax:  2,
				Now:          clock.Now,
			})
			_ = cb.Execute(fail)
			if cb.State() != StateOpen {
				t.Fatalf("state = %v, want open", cb.State())
			}

			clock.Advance(time.Minute)
			if cb.State() != StateHalfOpen {
				t.Fatalf("state after timeout = %v, want half-open", cb.State())
			}
			for _, p := range tt.probes {
				_ = cb.Execute(p)
			}
			if got := cb.State(); got != tt.want {
				t.Errorf("state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		HalfOpenMax:  1,
		Now:          clock.Now,
	})
	_ = cb.Execute(fail)
	clock.Advance(time.Second)

	// A probe in flight blocks a second one.
	inner := make(chan error, 1)
	err := cb.Execute(func() error {
		inner <- cb.Execute(succeed)
		return nil
	})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if got := <-inner; !errors.Is(got, ErrCircuitOpen) {
		t.Errorf("concurrent probe = %v, want ErrCircuitOpen", got)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "test", MaxFailures: 1, ResetTimeout: time.Hour})
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("state after Reset = %v, want closed", cb.State())
	}
	if err := cb.Execute(succeed); err != nil {
		t.Errorf("Execute after Reset = %v", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
