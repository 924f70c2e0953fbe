// Package tts is the contract between lexivox and speech synthesis services.
//
// Lexivox speaks prompts, target words and corrections one utterance at a
// time. Providers take the utterance as a channel of text fragments and hand
// back a [Stream] of PCM, so playback starts with the first rendered chunk.
// Implementations are used from several goroutines at once.
package tts

import (
	"context"

	"github.com/MrWong99/lexivox/pkg/types"
)

// Provider synthesizes speech.
type Provider interface {
	// SynthesizeStream reads text until it is closed and streams the audio.
	// An error means the utterance never started; failures after that are
	// reported by [Stream.Err] once Audio is closed. Callers drain Audio.
	SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (*Stream, error)

	// ListVoices returns the voices the service offers.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}
