package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/lexivox/internal/app"
	"github.com/MrWong99/lexivox/internal/config"
	"github.com/MrWong99/lexivox/internal/observe"
	"github.com/MrWong99/lexivox/internal/resilience"
	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/audio/portaudio"
	"github.com/MrWong99/lexivox/pkg/provider/stt"
	"github.com/MrWong99/lexivox/pkg/provider/stt/deepgram"
	"github.com/MrWong99/lexivox/pkg/provider/stt/whisper"
	"github.com/MrWong99/lexivox/pkg/provider/tts"
	"github.com/MrWong99/lexivox/pkg/provider/tts/elevenlabs"
	oaitts "github.com/MrWong99/lexivox/pkg/provider/tts/openai"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if rate := optInt(entry.Options, "sample_rate"); rate > 0 {
			opts = append(opts, deepgram.WithSampleRate(rate))
		}
		// 0 hands endpointing back to Deepgram, so presence matters.
		if _, ok := entry.Options["endpointing_ms"]; ok {
			ms := optInt(entry.Options, "endpointing_ms")
			opts = append(opts, deepgram.WithEndpointing(time.Duration(ms)*time.Millisecond))
		}
		if ms := optInt(entry.Options, "keepalive_ms"); ms > 0 {
			opts = append(opts, deepgram.WithKeepAlive(time.Duration(ms)*time.Millisecond))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// whisper runs locally; Model is the path to a ggml model file.
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if ms := optInt(entry.Options, "silence_threshold_ms"); ms > 0 {
			opts = append(opts, whisper.WithSilenceThresholdMs(ms))
		}
		if ms := optInt(entry.Options, "max_buffer_ms"); ms > 0 {
			opts = append(opts, whisper.WithMaxBufferDurationMs(ms))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		if voice := optString(entry.Options, "voice"); voice != "" {
			opts = append(opts, oaitts.WithDefaultVoice(voice))
		}
		if instr := optString(entry.Options, "instructions"); instr != "" {
			opts = append(opts, oaitts.WithInstructions(instr))
		}
		return oaitts.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterAudio("portaudio", func(config.ProviderEntry) (audio.Device, error) {
		return portaudio.Open()
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct. Configured fallbacks wrap
// the primary STT and TTS providers.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*app.Providers, error) {
	fcfg := resilience.FallbackConfig{Metrics: metrics}

	sttProvider, err := buildSTT(cfg.Providers, reg, fcfg)
	if err != nil {
		return nil, err
	}
	ttsProvider, err := buildTTS(cfg.Providers, reg, fcfg)
	if err != nil {
		return nil, err
	}

	ps := &app.Providers{STT: sttProvider, TTS: ttsProvider}
	if name := cfg.Providers.Audio.Name; name != "" {
		dev, err := reg.CreateAudio(cfg.Providers.Audio)
		if err != nil {
			return nil, fmt.Errorf("create audio provider %q: %w", name, err)
		}
		ps.Audio = dev
		slog.Info("provider created", "kind", "audio", "name", name)
	}
	return ps, nil
}

// buildSTT returns nil when no recognizer is configured or the configured
// one is unknown. Recognition is then unsupported and exercises can only be
// skipped.
func buildSTT(pc config.ProvidersConfig, reg *config.Registry, fcfg resilience.FallbackConfig) (stt.Provider, error) {
	name := pc.STT.Name
	if name == "" {
		return nil, nil
	}
	primary, err := reg.CreateSTT(pc.STT)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("stt provider not available, recognition disabled", "name", name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", name)
	if len(pc.STTFallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewSTTFallback(primary, name, fcfg)
	for _, entry := range pc.STTFallbacks {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			slog.Warn("skipping stt fallback", "name", entry.Name, "err", err)
			continue
		}
		fb.AddFallback(entry.Name, p)
	}
	slog.Info("stt fallback chain", "providers", fb.Providers())
	return fb, nil
}

func buildTTS(pc config.ProvidersConfig, reg *config.Registry, fcfg resilience.FallbackConfig) (tts.Provider, error) {
	name := pc.TTS.Name
	if name == "" {
		return nil, errors.New("no tts provider configured (providers.tts.name)")
	}
	primary, err := reg.CreateTTS(pc.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", name)
	if len(pc.TTSFallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewTTSFallback(primary, name, fcfg)
	for _, entry := range pc.TTSFallbacks {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			slog.Warn("skipping tts fallback", "name", entry.Name, "err", err)
			continue
		}
		fb.AddFallback(entry.Name, p)
	}
	slog.Info("tts fallback chain", "providers", fb.Providers())
	return fb, nil
}
