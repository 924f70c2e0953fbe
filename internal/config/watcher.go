package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// snapshot is one successfully validated read of the config file.
type snapshot struct {
	cfg *Config
	sum [sha256.Size]byte
	mod time.Time
}

func readSnapshot(path string) (snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), mod: info.ModTime()}, nil
}

// Watcher follows a config file on disk. Whenever the file's content changes
// into another valid config, the callback receives the [ConfigDiff] against
// the previous one. Edits that fail validation are reported and ignored.
type Watcher struct {
	path     string
	every    time.Duration
	onChange func(ConfigDiff, *Config)

	mu   sync.Mutex
	last snapshot
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets how often [Watcher.Run] polls. Default 2s.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.every = d
		}
	}
}

// NewWatcher reads and validates path once. onChange may be nil.
func NewWatcher(path string, onChange func(ConfigDiff, *Config), opts ...WatcherOption) (*Watcher, error) {
	snap, err := readSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w := &Watcher{path: path, every: 2 * time.Second, onChange: onChange, last: snap}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.cfg
}

// Run calls [Watcher.Poll] every interval until ctx is done, then returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := w.Poll(); err != nil {
				slog.Warn("config: keeping previous configuration", "path", w.path, "err", err)
			}
		}
	}
}

// Poll checks the file once and reports whether the config changed in a
// way the callback cares about; the callback has run by the time it
// returns. A touched file with identical bytes is not a change.
func (w *Watcher) Poll() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if info.ModTime().Equal(w.last.mod) {
		w.mu.Unlock()
		return false, nil
	}
	w.mu.Unlock()

	next, err := readSnapshot(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	prev := w.last
	w.last = next
	w.mu.Unlock()
	if next.sum == prev.sum {
		return false, nil
	}

	diff := Diff(prev.cfg, next.cfg)
	slog.Info("config: reloaded", "path", w.path,
		"restart_required", diff.RestartRequired,
		"applied", !diff.Empty(),
	)
	if diff.Empty() {
		return false, nil
	}
	// Unlocked so the callback may call Current.
	if w.onChange != nil {
		w.onChange(diff, next.cfg)
	}
	return true, nil
}
