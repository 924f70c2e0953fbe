package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lexivox/internal/app"
	"github.com/MrWong99/lexivox/internal/progress"
	"github.com/MrWong99/lexivox/internal/tui"
	"github.com/MrWong99/lexivox/internal/wordlist"
	"github.com/MrWong99/lexivox/pkg/types"
)

func newProgressCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show per-word scores and today's statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(opts.logFile, os.Stderr, cfg.Server.LogFormat, levelFor(cfg))
			if err != nil {
				return err
			}
			defer closeLog()

			store, closeStore, err := app.OpenStore(cmd.Context(), cfg.Store)
			if err != nil {
				return fmt.Errorf("open progress store: %w", err)
			}
			defer func() {
				if err := closeStore(); err != nil {
					slog.Warn("close progress store", "err", err)
				}
			}()

			words, err := wordlist.Load(cfg.Words.Files, "")
			if err != nil {
				slog.Warn("word lists unavailable, showing word IDs", "err", err)
			}
			return printProgress(cmd, store, words, time.Now())
		},
	}
}

type progressReader interface {
	Entries(ctx context.Context) ([]progress.Entry, error)
	Daily(ctx context.Context, day string) (progress.Daily, error)
}

func printProgress(cmd *cobra.Command, store progressReader, words []types.Word, now time.Time) error {
	ctx := cmd.Context()
	entries, err := store.Entries(ctx)
	if err != nil {
		return fmt.Errorf("read progress: %w", err)
	}
	daily, err := store.Daily(ctx, progress.Day(now))
	if err != nil {
		return fmt.Errorf("read daily statistics: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, tui.ProgressTable(entries, words))
	fmt.Fprintln(out, tui.DailySummary(daily))
	return nil
}
