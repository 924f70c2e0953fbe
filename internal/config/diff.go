package config

import "time"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	JudgingChanged   bool // threshold or phonetic hints
	NewThreshold     float64
	NewPhoneticHints bool

	MaxAttemptsChanged bool
	NewMaxAttempts     int

	LanguageChanged bool
	NewLanguage     string

	FeedbackDelayChanged bool
	NewFeedbackDelay     time.Duration

	// RestartRequired lists sections that changed but cannot be applied
	// while practicing.
	RestartRequired []string
}

// Empty reports whether the diff carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.JudgingChanged && !d.MaxAttemptsChanged &&
		!d.LanguageChanged && !d.FeedbackDelayChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oe, ne := old.Exercise, new.Exercise
	if oe.Threshold != ne.Threshold || oe.PhoneticHints != ne.PhoneticHints {
		d.JudgingChanged = true
		d.NewThreshold = ne.Threshold
		d.NewPhoneticHints = ne.PhoneticHints
	}
	if oe.MaxAttempts != ne.MaxAttempts {
		d.MaxAttemptsChanged = true
		d.NewMaxAttempts = ne.MaxAttempts
	}
	if oe.Language != ne.Language {
		d.LanguageChanged = true
		d.NewLanguage = ne.Language
	}
	if delay(oe.FeedbackDelay) != delay(ne.FeedbackDelay) {
		d.FeedbackDelayChanged = true
		d.NewFeedbackDelay = delay(ne.FeedbackDelay)
	}

	if !sameProviders(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Store != new.Store {
		d.RestartRequired = append(d.RestartRequired, "store")
	}
	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.LogFormat != new.Server.LogFormat {
		d.RestartRequired = append(d.RestartRequired, "server")
	}

	return d
}

func delay(d *time.Duration) time.Duration {
	if d == nil {
		return DefaultFeedbackDelay
	}
	return *d
}

// sameProviders compares the provider selection. Options are ignored.
func sameProviders(a, b ProvidersConfig) bool {
	same := func(x, y ProviderEntry) bool {
		return x.Name == y.Name && x.APIKey == y.APIKey && x.BaseURL == y.BaseURL && x.Model == y.Model
	}
	if !same(a.STT, b.STT) || !same(a.TTS, b.TTS) || !same(a.Audio, b.Audio) {
		return false
	}
	if len(a.STTFallbacks) != len(b.STTFallbacks) || len(a.TTSFallbacks) != len(b.TTSFallbacks) {
		return false
	}
	for i := range a.STTFallbacks {
		if !same(a.STTFallbacks[i], b.STTFallbacks[i]) {
			return false
		}
	}
	for i := range a.TTSFallbacks {
		if !same(a.TTSFallbacks[i], b.TTSFallbacks[i]) {
			return false
		}
	}
	return true
}
