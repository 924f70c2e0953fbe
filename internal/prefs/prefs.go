// Package prefs stores learner preferences in a TOML file.
package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/MrWong99/lexivox/internal/speech/playback"
)

// Preferences is the content of the preferences file.
type Preferences struct {
	// Voice is the name of the preferred synthesis voice.
	Voice string `toml:"voice"`
}

// DefaultPath returns $XDG_CONFIG_HOME/lexivox/preferences.toml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultPath() string {
	return filepath.Join(configHome(), "lexivox", "preferences.toml")
}

func configHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// File is a [playback.PreferenceStore] backed by a TOML file. A missing file
// reads as empty preferences.
type File struct {
	path string
	mu   sync.Mutex
}

var _ playback.PreferenceStore = (*File)(nil)

// NewFile returns a File stored at path. An empty path uses [DefaultPath].
func NewFile(path string) *File {
	if path == "" {
		path = DefaultPath()
	}
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string { return f.path }

// Load reads the preferences.
func (f *File) Load() (Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *File) load() (Preferences, error) {
	var p Preferences
	if _, err := toml.DecodeFile(f.path, &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Preferences{}, nil
		}
		return Preferences{}, fmt.Errorf("prefs: decode %s: %w", f.path, err)
	}
	return p, nil
}

// Update loads the preferences, applies fn and writes the result back.
func (f *File) Update(fn func(*Preferences)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, err := f.load()
	if err != nil {
		return err
	}
	fn(&p)
	return f.save(p)
}

func (f *File) save(p Preferences) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".preferences-*.toml")
	if err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := toml.NewEncoder(tmp).Encode(p); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("prefs: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	return nil
}

// PreferredVoiceName implements [playback.PreferenceStore].
func (f *File) PreferredVoiceName(context.Context) (string, error) {
	p, err := f.Load()
	if err != nil {
		return "", err
	}
	return p.Voice, nil
}

// SetPreferredVoiceName implements [playback.PreferenceStore].
func (f *File) SetPreferredVoiceName(_ context.Context, name string) error {
	return f.Update(func(p *Preferences) { p.Voice = name })
}
