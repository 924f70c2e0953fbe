package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultThreshold       = 0.85
	DefaultLanguage        = "en-US"
	DefaultVariant         = "speech"
	DefaultPromptRate      = 0.8
	DefaultFeedbackDelay   = 500 * time.Millisecond
	DefaultCaptureRate     = 48000
	DefaultCaptureChannels = 1
	DefaultRecognitionRate = 16000
	DefaultWordLimit       = 10
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":   {"deepgram", "whisper"},
	"tts":   {"elevenlabs", "openai"},
	"audio": {"portaudio"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values of cfg with the built-in defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = LogFormatText
	}
	if cfg.Providers.Audio.Name == "" {
		cfg.Providers.Audio.Name = "portaudio"
	}

	a := &cfg.Audio
	if a.CaptureRate == 0 {
		a.CaptureRate = DefaultCaptureRate
	}
	if a.CaptureChannels == 0 {
		a.CaptureChannels = DefaultCaptureChannels
	}
	if a.RecognitionRate == 0 {
		a.RecognitionRate = DefaultRecognitionRate
	}

	e := &cfg.Exercise
	if e.Threshold == 0 {
		e.Threshold = DefaultThreshold
	}
	if e.Language == "" {
		e.Language = DefaultLanguage
	}
	if e.Variant == "" {
		e.Variant = DefaultVariant
	}
	if e.CaptureMode == "" {
		e.CaptureMode = CaptureSingle
	}
	if e.FeedbackDelay == nil {
		d := DefaultFeedbackDelay
		e.FeedbackDelay = &d
	}
	if e.PromptRate == 0 {
		e.PromptRate = DefaultPromptRate
	}

	if cfg.Playback.Lang == "" {
		cfg.Playback.Lang = e.Language
	}
	if cfg.Playback.LowQualityVoices == "" {
		cfg.Playback.LowQualityVoices = "auto"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreMemory
	}
	if cfg.Words.Limit == 0 {
		cfg.Words.Limit = DefaultWordLimit
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("audio", cfg.Providers.Audio.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", fb.Name)
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
		validateProviderName("tts", fb.Name)
	}
	if len(cfg.Providers.STTFallbacks) > 0 && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallbacks requires providers.stt"))
	}
	if len(cfg.Providers.TTSFallbacks) > 0 && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts_fallbacks requires providers.tts"))
	}

	// Provider availability warnings
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; speech exercises will offer skip only")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; prompts will not be spoken")
	}

	// Audio
	a := cfg.Audio
	if a.CaptureRate < 0 || a.RecognitionRate < 0 {
		errs = append(errs, errors.New("audio sample rates must be positive"))
	}
	if a.CaptureChannels < 0 || a.CaptureChannels > 2 {
		errs = append(errs, fmt.Errorf("audio.capture_channels %d is out of range [1, 2]", a.CaptureChannels))
	}

	// Exercise
	e := cfg.Exercise
	if e.Threshold < 0 || e.Threshold > 1 {
		errs = append(errs, fmt.Errorf("exercise.threshold %.2f is out of range [0, 1]", e.Threshold))
	}
	switch e.Variant {
	case "", "speech", "explore":
	default:
		errs = append(errs, fmt.Errorf("exercise.variant %q is invalid; valid values: speech, explore", e.Variant))
	}
	if e.CaptureMode != "" && !e.CaptureMode.IsValid() {
		errs = append(errs, fmt.Errorf("exercise.capture_mode %q is invalid; valid values: single, continuous", e.CaptureMode))
	}
	if e.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("exercise.max_attempts %d must not be negative", e.MaxAttempts))
	}
	if e.FeedbackDelay != nil && *e.FeedbackDelay < 0 {
		errs = append(errs, fmt.Errorf("exercise.feedback_delay %s must not be negative", *e.FeedbackDelay))
	}
	if e.PromptRate != 0 && (e.PromptRate < 0.1 || e.PromptRate > 10) {
		errs = append(errs, fmt.Errorf("exercise.prompt_rate %.2f is out of range [0.1, 10]", e.PromptRate))
	}
	seenKinds := make(map[string]int, len(e.Kinds))
	for i, k := range e.Kinds {
		if k == "" {
			errs = append(errs, fmt.Errorf("exercise.kinds[%d] is empty", i))
			continue
		}
		if prev, ok := seenKinds[k]; ok {
			errs = append(errs, fmt.Errorf("exercise.kinds[%d] %q is a duplicate of exercise.kinds[%d]", i, k, prev))
		}
		seenKinds[k] = i
	}
	for k, v := range e.Increments {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("exercise.increments.%s %d is out of range [0, 100]", k, v))
		}
	}

	// Playback
	switch cfg.Playback.LowQualityVoices {
	case "", "auto", "true", "false":
	default:
		errs = append(errs, fmt.Errorf("playback.low_quality_voices %q is invalid; valid values: auto, true, false", cfg.Playback.LowQualityVoices))
	}

	// Store
	if cfg.Store.Driver != "" && !cfg.Store.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: memory, sqlite, postgres", cfg.Store.Driver))
	}
	if cfg.Store.Driver == StorePostgres && cfg.Store.DSN == "" {
		errs = append(errs, errors.New("store.dsn is required when store.driver is postgres"))
	}

	// Words
	if cfg.Words.Limit < 0 || cfg.Words.Limit > 50 {
		errs = append(errs, fmt.Errorf("words.limit %d is out of range [1, 50]", cfg.Words.Limit))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
