package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/lexivox/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"log level", "server:\n  log_level: verbose\n", "server.log_level"},
		{"log format", "server:\n  log_format: xml\n", "server.log_format"},
		{"threshold high", "exercise:\n  threshold: 1.5\n", "exercise.threshold"},
		{"threshold negative", "exercise:\n  threshold: -0.1\n", "exercise.threshold"},
		{"variant", "exercise:\n  variant: typing\n", "exercise.variant"},
		{"capture mode", "exercise:\n  capture_mode: hold\n", "exercise.capture_mode"},
		{"max attempts", "exercise:\n  max_attempts: -1\n", "exercise.max_attempts"},
		{"feedback delay", "exercise:\n  feedback_delay: -1s\n", "exercise.feedback_delay"},
		{"prompt rate", "exercise:\n  prompt_rate: 20\n", "exercise.prompt_rate"},
		{"duplicate kind", "exercise:\n  kinds: [speech, typing, speech]\n", "duplicate"},
		{"empty kind", "exercise:\n  kinds: [\"\"]\n", "exercise.kinds[0] is empty"},
		{"increment", "exercise:\n  increments:\n    speech: 150\n", "exercise.increments.speech"},
		{"low quality", "playback:\n  low_quality_voices: maybe\n", "playback.low_quality_voices"},
		{"store driver", "store:\n  driver: mongo\n", "store.driver"},
		{"postgres dsn", "store:\n  driver: postgres\n", "store.dsn"},
		{"words limit", "words:\n  limit: 80\n", "words.limit"},
		{"capture channels", "audio:\n  capture_channels: 6\n", "audio.capture_channels"},
		{"stt fallback name", "providers:\n  stt:\n    name: deepgram\n  stt_fallbacks:\n    - model: x\n", "stt_fallbacks[0].name"},
		{"tts fallback without primary", "providers:\n  tts_fallbacks:\n    - name: openai\n", "requires providers.tts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
exercise:
  threshold: 2
store:
  driver: mongo
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.log_level", "exercise.threshold", "store.driver"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error misses %q: %v", want, err)
		}
	}
}

func TestValidate_UnknownProviderNameIsOnlyAWarning(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt:
    name: my-custom-stt
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Errorf("unknown provider names should not fail validation: %v", err)
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}
