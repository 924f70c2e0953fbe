package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/lexivox/internal/app"
	"github.com/MrWong99/lexivox/internal/config"
	"github.com/MrWong99/lexivox/internal/exercise"
	"github.com/MrWong99/lexivox/internal/observe"
	"github.com/MrWong99/lexivox/internal/tui"
)

// shutdownTimeout bounds the teardown after the practice UI exits.
const shutdownTimeout = 15 * time.Second

func runPractice(cmd *cobra.Command, opts *options) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return errNotTerminal
	}
	ctx := cmd.Context()

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	// The UI owns the terminal, so logs always go to a file.
	logPath := opts.logFile
	if logPath == "" {
		logPath = defaultLogPath()
	}
	levels := levelFor(cfg)
	closeLog, err := setupLogging(logPath, os.Stderr, cfg.Server.LogFormat, levels)
	if err != nil {
		return err
	}
	defer closeLog()

	slog.Info("lexivox starting",
		"version", version,
		"config", opts.configPath,
		"stt", cfg.Providers.STT.Name,
		"tts", cfg.Providers.TTS.Name,
		"listen_addr", cfg.Server.ListenAddr,
	)

	shutdownOtel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	providers, err := buildProviders(cfg, reg, metrics)
	if err != nil {
		return err
	}

	// One controller per exercise kind; buffered so the hook never blocks
	// once the UI has gone away.
	controllers := make(chan *exercise.Controller, len(cfg.Exercise.Kinds)+1)
	application, err := app.New(ctx, cfg, providers,
		app.WithMetrics(metrics),
		app.WithLogLevel(levels),
		app.WithControllerHook(func(c *exercise.Controller) {
			select {
			case controllers <- c:
			default:
				slog.Warn("practice UI is not following the session")
			}
		}),
	)
	if err != nil {
		if providers.Audio != nil {
			_ = providers.Audio.Close()
		}
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcher, err := config.NewWatcher(opts.configPath, application.Reload)
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		go func() {
			if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("config watcher stopped", "err", err)
			}
		}()
	}

	program := tea.NewProgram(tui.NewModel(controllers, application.Stats),
		tea.WithAltScreen(),
		tea.WithContext(runCtx),
	)

	runErr := make(chan error, 1)
	go func() {
		err := application.Run(runCtx)
		program.Send(tui.DoneMsg{Stats: application.Stats(), Err: err})
		runErr <- err
	}()

	_, uiErr := program.Run()
	cancel()
	sessionErr := <-runErr

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return fmt.Errorf("run practice UI: %w", uiErr)
	}
	if sessionErr != nil {
		return fmt.Errorf("practice session: %w", sessionErr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.Summary(application.Stats()))
	return nil
}
