package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/lexivox/internal/observe"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for each entry's breaker. Name is set
	// per entry.
	CircuitBreaker CircuitBreakerConfig

	// Metrics, if set, counts requests and errors per provider.
	Metrics *observe.Metrics
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallback instances of one
// provider type. Calls go to the first entry whose breaker admits them.
//
// Cancellation is the caller's decision, not a provider fault: a call that
// ends with context.Canceled or context.DeadlineExceeded is returned at once,
// is not retried on the next entry, and does not count against the breaker.
type FallbackGroup[T any] struct {
	kind    string
	cfg     FallbackConfig
	entries []fallbackEntry[T]

	mu      sync.Mutex
	serving string
}

// NewFallbackGroup creates a group for providers of kind ("stt", "tts") with
// primary as the first entry.
func NewFallbackGroup[T any](kind string, primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{kind: kind, cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a provider. Entries are tried in the order added.
// It must not be called concurrently with Execute.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = fg.kind + "/" + name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns the entry names in order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Execute tries fn against each entry until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry of fg until one succeeds and
// returns its result. It wraps the last error in [ErrAllFailed] when every
// entry fails.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range fg.entries {
		entry := &fg.entries[i]

		var (
			result   R
			callErr  error
			canceled bool
		)
		err := entry.breaker.Execute(func() error {
			result, callErr = fn(entry.value)
			if isCancellation(callErr) {
				canceled = true
				return nil
			}
			return callErr
		})
		switch {
		case canceled:
			fg.record(ctx, entry.name, "canceled")
			return zero, callErr
		case err == nil:
			fg.record(ctx, entry.name, "ok")
			fg.markServing(entry.name)
			return result, nil
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("skipping provider, circuit open", "kind", fg.kind, "provider", entry.name)
		default:
			fg.record(ctx, entry.name, "error")
			if m := fg.cfg.Metrics; m != nil {
				m.RecordProviderError(ctx, entry.name, fg.kind)
			}
			slog.Warn("provider failed, trying next", "kind", fg.kind, "provider", entry.name, "err", err)
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %s: %w", ErrAllFailed, fg.kind, lastErr)
}

// Serving returns the name of the entry that handled the last successful
// call, or "" before the first one.
func (fg *FallbackGroup[T]) Serving() string {
	fg.mu.Lock()
	defer fg.mu.Unlock()
	return fg.serving
}

func (fg *FallbackGroup[T]) markServing(name string) {
	fg.mu.Lock()
	prev := fg.serving
	fg.serving = name
	fg.mu.Unlock()
	if prev != "" && prev != name {
		slog.Info("provider switched", "kind", fg.kind, "from", prev, "to", name)
	}
}

func (fg *FallbackGroup[T]) record(ctx context.Context, provider, status string) {
	if m := fg.cfg.Metrics; m != nil {
		m.RecordProviderRequest(ctx, provider, fg.kind, status)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
