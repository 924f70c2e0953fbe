// Command lexivox is a spoken vocabulary trainer for the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/MrWong99/lexivox/internal/app"
	"github.com/MrWong99/lexivox/internal/config"
	"github.com/MrWong99/lexivox/internal/observe"
	"github.com/MrWong99/lexivox/internal/prefs"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errNotTerminal is returned when practice is started without a terminal.
var errNotTerminal = errors.New("lexivox: practice needs an interactive terminal")

type options struct {
	configPath string
	logFile    string
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "lexivox",
		Short:         "Spoken vocabulary trainer",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPractice(cmd, opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "write logs to this file (practice default: lexivox.log next to the preferences)")

	rootCmd.AddCommand(newPracticeCmd(opts))
	rootCmd.AddCommand(newVoicesCmd(opts))
	rootCmd.AddCommand(newProgressCmd(opts))
	return rootCmd
}

func newPracticeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "practice",
		Short: "Practice the selected words by speaking them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPractice(cmd, opts)
		},
	}
}

// loadConfig loads the config at path with a friendlier message when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found, pass --config to point at one", path)
	}
	return cfg, err
}

// setupLogging installs the default logger writing to path, or to fallback
// when path is empty. The returned closer is never nil.
func setupLogging(path string, fallback io.Writer, format config.LogFormat, level *slog.LevelVar) (func() error, error) {
	w, closer := fallback, func() error { return nil }
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return closer, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f.Close
	}
	slog.SetDefault(newLogger(w, format, level))
	return closer, nil
}

// newLogger builds a text or JSON logger at level that attaches trace and
// span IDs from the context.
func newLogger(w io.Writer, format config.LogFormat, level *slog.LevelVar) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == config.LogFormatJSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(observe.NewContextHandler(h))
}

// levelFor returns a LevelVar initialised from cfg.
func levelFor(cfg *config.Config) *slog.LevelVar {
	lv := new(slog.LevelVar)
	lv.Set(app.SlogLevel(cfg.Server.LogLevel))
	return lv
}

// defaultLogPath is where practice logs go when --log-file is not set.
func defaultLogPath() string {
	return filepath.Join(filepath.Dir(prefs.DefaultPath()), "lexivox.log")
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, ok := opts[key].(string)
	if !ok {
		return ""
	}
	return s
}

// optInt extracts an integer value from a provider Options map. YAML decodes
// whole numbers as int; float64 values are truncated. Returns 0 otherwise.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
