package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lexivox/internal/config"
	"github.com/MrWong99/lexivox/internal/prefs"
	"github.com/MrWong99/lexivox/internal/resilience"
	"github.com/MrWong99/lexivox/internal/speech/backend"
	"github.com/MrWong99/lexivox/internal/speech/playback"
	"github.com/MrWong99/lexivox/internal/tui"
)

func newVoicesCmd(opts *options) *cobra.Command {
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "List synthesizer voices and mark the one in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, cfg, closeLog, err := voiceService(opts)
			if err != nil {
				return err
			}
			defer closeLog()
			return listVoices(cmd, svc, cfg)
		},
	}
	voicesCmd.AddCommand(&cobra.Command{
		Use:   "set NAME",
		Short: `Persist the preferred voice ("" clears it)`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, closeLog, err := voiceService(opts)
			if err != nil {
				return err
			}
			defer closeLog()
			return setVoice(cmd, svc, args[0])
		},
	})
	return voicesCmd
}

// voiceService builds a playback service for voice management only. It
// never plays audio, so no device is opened.
func voiceService(opts *options) (*playback.Service, *config.Config, func() error, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	closeLog, err := setupLogging(opts.logFile, os.Stderr, cfg.Server.LogFormat, levelFor(cfg))
	if err != nil {
		return nil, nil, nil, err
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	provider, err := buildTTS(cfg.Providers, reg, resilience.FallbackConfig{})
	if err != nil {
		closeLog()
		return nil, nil, nil, err
	}

	env := playback.DetectEnvironment(cfg.Playback.LowQualityVoices)
	env.QualityVoices = cfg.Playback.QualityVoices
	svc := playback.New(backend.NewSynthesizer(provider, nil),
		playback.WithEnvironment(env),
		playback.WithPreferences(prefs.NewFile(cfg.Preferences.Path)),
	)
	return svc, cfg, closeLog, nil
}

type voiceLister interface {
	Voices(ctx context.Context) ([]playback.Voice, error)
	PreferredVoice(ctx context.Context) (string, error)
	Environment() playback.Environment
}

func listVoices(cmd *cobra.Command, svc voiceLister, cfg *config.Config) error {
	ctx := cmd.Context()
	voices, err := svc.Voices(ctx)
	if err != nil {
		return err
	}
	preferred, err := svc.PreferredVoice(ctx)
	if err != nil {
		return err
	}
	selected := preferred
	if v := playback.SelectVoice(voices, cfg.Playback.Lang, preferred, svc.Environment()); v != nil {
		selected = v.Name
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.VoiceList(voices, selected))
	return nil
}

type voiceSetter interface {
	SetPreferredVoice(ctx context.Context, name string) error
}

func setVoice(cmd *cobra.Command, svc voiceSetter, name string) error {
	if err := svc.SetPreferredVoice(cmd.Context(), name); err != nil {
		return err
	}
	if name == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Preferred voice cleared.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Preferred voice set to %s.\n", name)
	return nil
}
