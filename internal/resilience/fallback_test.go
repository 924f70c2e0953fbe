package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/lexivox/internal/observe"
)

func newGroup(cb CircuitBreakerConfig, names ...string) *FallbackGroup[string] {
	fg := NewFallbackGroup("stt", names[0], names[0], FallbackConfig{CircuitBreaker: cb})
	for _, n := range names[1:] {
		fg.AddFallback(n, n)
	}
	return fg
}

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	t.Parallel()
	fg := newGroup(CircuitBreakerConfig{}, "deepgram", "whisper")

	var used []string
	err := fg.Execute(context.Background(), func(v string) error {
		used = append(used, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(used) != 1 || used[0] != "deepgram" {
		t.Errorf("used = %v, want [deepgram]", used)
	}
}

func TestFallbackGroup_Failover(t *testing.T) {
	t.Parallel()
	fg := newGroup(CircuitBreakerConfig{}, "deepgram", "whisper")

	got, err := ExecuteWithResult(context.Background(), fg, func(v string) (string, error) {
		if v == "deepgram" {
			return "", errTest
		}
		return "ok from " + v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok from whisper" {
		t.Errorf("result = %q", got)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	t.Parallel()
	fg := newGroup(CircuitBreakerConfig{}, "a", "b")

	err := fg.Execute(context.Background(), func(v string) error {
		return fmt.Errorf("%s down", v)
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if got := err.Error(); got != "resilience: all providers failed: stt: b down" {
		t.Errorf("err = %q", got)
	}
}

func TestFallbackGroup_SkipsOpenProvider(t *testing.T) {
	t.Parallel()
	fg := newGroup(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}, "a", "b")

	// Trip a's breaker.
	_ = fg.Execute(context.Background(), func(v string) error {
		if v == "a" {
			return errTest
		}
		return nil
	})

	var used []string
	err := fg.Execute(context.Background(), func(v string) error {
		used = append(used, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(used) != 1 || used[0] != "b" {
		t.Errorf("used = %v, want [b]", used)
	}
}

func TestFallbackGroup_CancellationStops(t *testing.T) {
	t.Parallel()
	fg := newGroup(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}, "a", "b")

	var used []string
	err := fg.Execute(context.Background(), func(v string) error {
		used = append(used, v)
		return fmt.Errorf("dial: %w", context.Canceled)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrAllFailed) {
		t.Error("cancellation must not be reported as ErrAllFailed")
	}
	if len(used) != 1 {
		t.Errorf("used = %v, want only the primary", used)
	}
	if st := fg.entries[0].breaker.State(); st != StateClosed {
		t.Errorf("primary breaker = %v, want closed", st)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	t.Parallel()
	fg := newGroup(CircuitBreakerConfig{}, "elevenlabs", "openai")
	names := fg.Names()
	if len(names) != 2 || names[0] != "elevenlabs" || names[1] != "openai" {
		t.Errorf("Names() = %v", names)
	}
}

func TestFallbackGroup_RecordsMetrics(t *testing.T) {
	t.Parallel()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	fg := NewFallbackGroup("tts", "elevenlabs", "elevenlabs", FallbackConfig{Metrics: m})
	fg.AddFallback("openai", "openai")
	_ = fg.Execute(context.Background(), func(v string) error {
		if v == "elevenlabs" {
			return errTest
		}
		return nil
	})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := sumFor(rm, "lexivox.provider.errors", "provider", "elevenlabs"); got != 1 {
		t.Errorf("elevenlabs errors = %d, want 1", got)
	}
	if got := sumFor(rm, "lexivox.provider.requests", "provider", "openai"); got != 1 {
		t.Errorf("openai requests = %d, want 1", got)
	}
}

func sumFor(rm metricdata.ResourceMetrics, name, key, value string) int64 {
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}
