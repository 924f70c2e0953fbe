package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/stt"
	"github.com/MrWong99/lexivox/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by the Create methods when nothing is
// registered under the entry's name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is the name table for one provider kind.
type factories[T any] struct {
	kind   string
	byName map[string]Factory[T]
}

func newFactories[T any](kind string) factories[T] {
	return factories[T]{kind: kind, byName: map[string]Factory[T]{}}
}

func (f factories[T]) lookup(name string) (Factory[T], error) {
	build, ok := f.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, name)
	}
	return build, nil
}

// build runs the factory for entry outside the registry lock.
func build[T any](r *Registry, f *factories[T], entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, err := f.lookup(entry.Name)
	r.mu.RUnlock()
	if err != nil {
		var zero T
		return zero, err
	}
	return factory(entry)
}

func (f factories[T]) names() []string {
	names := make([]string, 0, len(f.byName))
	for n := range f.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Registry resolves the provider names used in [ProvidersConfig] to
// constructors. Registering a name twice replaces the earlier factory.
// A Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	stt   factories[stt.Provider]
	tts   factories[tts.Provider]
	audio factories[audio.Device]
}

// NewRegistry returns a registry with no factories.
func NewRegistry() *Registry {
	return &Registry{
		stt:   newFactories[stt.Provider]("stt"),
		tts:   newFactories[tts.Provider]("tts"),
		audio: newFactories[audio.Device]("audio"),
	}
}

func (r *Registry) RegisterSTT(name string, factory Factory[stt.Provider]) {
	r.mu.Lock()
	r.stt.byName[name] = factory
	r.mu.Unlock()
}

func (r *Registry) RegisterTTS(name string, factory Factory[tts.Provider]) {
	r.mu.Lock()
	r.tts.byName[name] = factory
	r.mu.Unlock()
}

func (r *Registry) RegisterAudio(name string, factory Factory[audio.Device]) {
	r.mu.Lock()
	r.audio.byName[name] = factory
	r.mu.Unlock()
}

// CreateSTT builds the recognizer named by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return build(r, &r.stt, entry)
}

// CreateTTS builds the synthesizer named by entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return build(r, &r.tts, entry)
}

// CreateAudio opens the device named by entry.Name.
func (r *Registry) CreateAudio(entry ProviderEntry) (audio.Device, error) {
	return build(r, &r.audio, entry)
}

// Names lists the registered names of kind ("stt", "tts" or "audio"),
// sorted. Unknown kinds have no names.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case r.stt.kind:
		return r.stt.names()
	case r.tts.kind:
		return r.tts.names()
	case r.audio.kind:
		return r.audio.names()
	}
	return nil
}
