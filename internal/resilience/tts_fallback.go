package resilience

import (
	"context"

	"github.com/MrWong99/lexivox/pkg/provider/tts"
	"github.com/MrWong99/lexivox/pkg/types"
)

// TTSFallback is a [tts.Provider] that synthesises on the first healthy
// voice service. Only stream setup fails over; an error in the middle of an
// utterance ends that utterance.
//
// The text channel can be read only once, so it is buffered up front and
// replayed to whichever provider gets the call.
type TTSFallback struct {
	*FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// provider.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{NewFallbackGroup("tts", primary, primaryName, cfg)}
}

// Providers returns the provider names in the order they are tried.
func (f *TTSFallback) Providers() []string { return f.Names() }

// SynthesizeStream implements [tts.Provider].
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*tts.Stream, error) {
	var fragments []string
	for frag := range text {
		fragments = append(fragments, frag)
	}
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p tts.Provider) (*tts.Stream, error) {
		return p.SynthesizeStream(ctx, replay(fragments), voice)
	})
}

// ListVoices implements [tts.Provider]. It lists the voices of the first
// healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p tts.Provider) ([]types.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

func replay(fragments []string) <-chan string {
	ch := make(chan string, len(fragments))
	for _, s := range fragments {
		ch <- s
	}
	close(ch)
	return ch
}
