// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a streaming transcription service (Deepgram, or a local
// whisper.cpp model) behind one interface. Once a session is opened it accepts
// raw PCM audio and emits two streams of Transcript values: low-latency
// partials for the live transcript display and finals for judging.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/lexivox/pkg/types"
)

// ErrNotSupported is returned by optional SessionHandle methods the provider
// cannot honour.
var ErrNotSupported = errors.New("stt: operation not supported")

// StreamConfig describes the audio format and recognition hints for a new
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. 16000 is what every bundled
	// provider is tuned for.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g. "en-US").
	// Empty lets the provider auto-detect, if supported.
	Language string

	// InterimResults enables partial transcripts. When false, Partials is
	// still returned but never receives values.
	InterimResults bool

	// MaxAlternatives is the number of ranked hypotheses requested per result.
	// Zero or one means a single hypothesis.
	MaxAlternatives int

	// Keywords are vocabulary hints that raise the recognition probability of
	// the listed words.
	Keywords []types.KeywordBoost
}

// SessionHandle is an open streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of PCM matching StreamConfig. Calling it after
	// Close returns an error.
	SendAudio(chunk []byte) error

	// Partials emits interim transcripts. Closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits committed transcripts. Closed when the session ends.
	Finals() <-chan Transcript

	// SetKeywords replaces the keyword list without restarting the session.
	// Providers that cannot do this return ErrNotSupported.
	SetKeywords(keywords []types.KeywordBoost) error

	// Close flushes pending audio, lets the provider emit its last finals and
	// then closes Partials and Finals. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// StartStream opens a new streaming session. The returned handle accepts
	// audio immediately. The caller owns it and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
