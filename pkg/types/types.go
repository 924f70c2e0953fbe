// Package types defines the values shared between lexivox packages.
//
// Providers, the exercise engine, the progress store and the word loaders all
// exchange these types. Each package keeps its own domain types; only data that
// crosses package boundaries lives here to avoid import cycles.
package types

import "time"

// Word is a single vocabulary entry. It is read-only to the exercise engine
// and treated as an immutable value for the duration of one exercise turn.
type Word struct {
	// ID uniquely identifies the word inside its store.
	ID string `yaml:"id" json:"id"`

	// Target is the text the learner has to say (the English word).
	Target string `yaml:"english" json:"english"`

	// Prompt is a description read aloud instead of the target so the answer
	// is not given away.
	Prompt string `yaml:"description" json:"description"`

	// Translation is shown to the learner on request.
	Translation string `yaml:"translation" json:"translation"`

	// GroupID names the word group this entry belongs to. May be empty.
	GroupID string `yaml:"group,omitempty" json:"group,omitempty"`
}

// AudioFrame is a chunk of 16-bit little-endian PCM audio.
type AudioFrame struct {
	// Data holds the interleaved PCM samples.
	Data []byte

	// SampleRate in Hz (16000 for microphone capture, 24000 for most TTS).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// KeywordBoost is a vocabulary hint for speech recognition. The exercise
// engine boosts the current target word so short or rare words are
// recognised more reliably.
type KeywordBoost struct {
	// Keyword is the text to boost.
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}

// VoiceProfile describes a synthesis voice as offered by a TTS provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name. Preference lookups use it.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Language is the BCP-47 tag the voice speaks (e.g. "en-US"). Empty when
	// the provider does not report it.
	Language string

	// Default marks the provider's default voice.
	Default bool

	// PitchShift adjusts pitch (-10 to +10, 0 = default).
	PitchShift float64

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default).
	SpeedFactor float64

	// Metadata holds provider-specific voice attributes (gender, accent, ...).
	Metadata map[string]string
}
