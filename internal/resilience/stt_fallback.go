package resilience

import (
	"context"

	"github.com/MrWong99/lexivox/pkg/provider/stt"
)

// STTFallback opens recognition streams on the first recognizer whose
// breaker is closed. Failover happens per stream: a capture already running
// on a recognizer that dies is not moved, the next capture picks again.
type STTFallback struct {
	*FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback returns a chain that prefers primary.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{NewFallbackGroup("stt", primary, primaryName, cfg)}
}

// Providers lists the recognizers in the order they are tried.
func (f *STTFallback) Providers() []string { return f.Names() }

func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
