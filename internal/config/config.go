// Package config provides the configuration schema, loader, hot-reload watcher
// and provider registry for lexivox.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// CaptureMode selects how a capture ends.
type CaptureMode string

const (
	// CaptureSingle ends the capture after the first final result.
	CaptureSingle CaptureMode = "single"

	// CaptureContinuous keeps listening until the learner stops.
	CaptureContinuous CaptureMode = "continuous"
)

// IsValid reports whether m is a recognised capture mode.
func (m CaptureMode) IsValid() bool {
	return m == CaptureSingle || m == CaptureContinuous
}

// StoreDriver selects the progress store.
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StoreSQLite   StoreDriver = "sqlite"
	StorePostgres StoreDriver = "postgres"
)

// IsValid reports whether d is a recognised store driver.
func (d StoreDriver) IsValid() bool {
	switch d {
	case StoreMemory, StoreSQLite, StorePostgres:
		return true
	}
	return false
}

// Config is the root configuration structure for lexivox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Audio       AudioConfig       `yaml:"audio"`
	Exercise    ExerciseConfig    `yaml:"exercise"`
	Playback    PlaybackConfig    `yaml:"playback"`
	Store       StoreConfig       `yaml:"store"`
	Words       WordsConfig       `yaml:"words"`
	Preferences PreferencesConfig `yaml:"preferences"`
}

// ServerConfig holds logging settings and the metrics/health listener.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFormat selects text or JSON log output.
	LogFormat LogFormat `yaml:"log_format"`
}

// ProvidersConfig declares which provider implementation backs recognition,
// synthesis and the audio device. Each entry selects a named provider
// registered in the [Registry].
type ProvidersConfig struct {
	STT   ProviderEntry `yaml:"stt"`
	TTS   ProviderEntry `yaml:"tts"`
	Audio ProviderEntry `yaml:"audio"`

	// STTFallbacks are tried in order when the primary STT provider fails.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	// TTSFallbacks are tried in order when the primary TTS provider fails.
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-2",
	// "tts-1", or a whisper model path).
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// AudioConfig sets the device formats. Zero values use the defaults applied by
// [ApplyDefaults].
type AudioConfig struct {
	// CaptureRate is the microphone sample rate in Hz.
	CaptureRate int `yaml:"capture_rate"`

	// CaptureChannels is the microphone channel count.
	CaptureChannels int `yaml:"capture_channels"`

	// RecognitionRate is the sample rate fed to the recognizer.
	RecognitionRate int `yaml:"recognition_rate"`
}

// ExerciseConfig tunes judging and the spoken exercise flow.
type ExerciseConfig struct {
	// Threshold is the minimum similarity in [0, 1] for an answer to count as
	// correct.
	Threshold float64 `yaml:"threshold"`

	// PhoneticHints reports sound-alike answers in the judgment.
	PhoneticHints bool `yaml:"phonetic_hints"`

	// Language is the BCP-47 tag used for recognition and prompts.
	Language string `yaml:"language"`

	// Variant selects the spoken exercise: "speech" or "explore".
	Variant string `yaml:"variant"`

	// CaptureMode ends captures after one result ("single") or keeps
	// listening ("continuous").
	CaptureMode CaptureMode `yaml:"capture_mode"`

	// InterimResults shows partial transcripts while the learner speaks.
	InterimResults bool `yaml:"interim_results"`

	// TargetHint boosts the target word in the recognizer's vocabulary.
	TargetHint bool `yaml:"target_hint"`

	// MaxAttempts advances after this many wrong answers. Zero retries
	// until the learner skips.
	MaxAttempts int `yaml:"max_attempts"`

	// FeedbackDelay is the pause between a judgment and its spoken feedback.
	FeedbackDelay *time.Duration `yaml:"feedback_delay"`

	// PromptRate is the speaking rate of prompts and feedback.
	PromptRate float64 `yaml:"prompt_rate"`

	// Kinds is the session order of exercise kinds.
	Kinds []string `yaml:"kinds"`

	// Increments overrides the score a correct answer of a kind earns.
	Increments map[string]int `yaml:"increments"`
}

// PlaybackConfig tunes voice selection.
type PlaybackConfig struct {
	// Lang is the language prompts are spoken in. Defaults to
	// exercise.language.
	Lang string `yaml:"lang"`

	// LowQualityVoices is "auto", "true" or "false".
	LowQualityVoices string `yaml:"low_quality_voices"`

	// QualityVoices lists preferred voice names on low-quality platforms.
	QualityVoices []string `yaml:"quality_voices"`
}

// StoreConfig selects where progress is kept.
type StoreConfig struct {
	Driver StoreDriver `yaml:"driver"`

	// DSN is the SQLite file path or the PostgreSQL connection string.
	DSN string `yaml:"dsn"`
}

// WordsConfig lists the word list files and the selection.
type WordsConfig struct {
	Files []string `yaml:"files"`
	Group string   `yaml:"group"`
	Limit int      `yaml:"limit"`
}

// PreferencesConfig locates the preferences file.
type PreferencesConfig struct {
	// Path overrides $XDG_CONFIG_HOME/lexivox/preferences.toml.
	Path string `yaml:"path"`
}
