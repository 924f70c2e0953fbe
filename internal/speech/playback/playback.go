// Package playback speaks text through a synthesizer one utterance at a
// time.
//
// [Service.Speak] blocks until the utterance has been heard. Starting a new
// utterance cancels the one in flight, which then returns [ErrInterrupted].
// The voice is chosen per utterance by [SelectVoice] from the synthesizer's
// voices, the learner's preferred voice and the platform [Environment].
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lexivox/internal/observe"
)

// Sentinel errors.
var (
	// ErrInterrupted is returned by Speak when the utterance was cancelled by
	// a later Speak or by Cancel.
	ErrInterrupted = errors.New("playback: interrupted")

	// ErrUnknownVoice is returned by SetPreferredVoice for names the
	// synthesizer does not offer.
	ErrUnknownVoice = errors.New("playback: unknown voice")
)

// SynthesisError is a synthesizer failure while speaking.
type SynthesisError struct {
	Reason string
	Err    error
}

func (e *SynthesisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("playback: %s: %v", e.Reason, e.Err)
	}
	return "playback: " + e.Reason
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Utterance is one request to the synthesizer.
type Utterance struct {
	Text string
	Lang string

	// Voice is nil when the synthesizer offers no voices; it should then use
	// its own default.
	Voice *Voice

	Rate   float64
	Pitch  float64
	Volume float64
}

// Synthesizer turns utterances into audible speech.
type Synthesizer interface {
	// Voices lists the available voices.
	Voices(ctx context.Context) ([]Voice, error)

	// Speak blocks until u has been played. Cancelling ctx stops playback.
	Speak(ctx context.Context, u Utterance) error
}

// PreferenceStore persists the learner's preferred voice.
type PreferenceStore interface {
	// PreferredVoiceName returns "" when no preference is stored.
	PreferredVoiceName(ctx context.Context) (string, error)
	SetPreferredVoiceName(ctx context.Context, name string) error
}

// Options tune one utterance. Zero values take the [Environment] defaults.
type Options struct {
	Lang   string
	Rate   float64
	Pitch  float64
	Volume float64
}

// Option is a functional option for configuring a [Service].
type Option func(*Service)

// WithEnvironment sets the platform environment. Default: DetectEnvironment("auto").
func WithEnvironment(env Environment) Option {
	return func(s *Service) { s.env = env }
}

// WithPreferences sets where the preferred voice is stored. Without it
// preferences live in memory for the lifetime of the Service.
func WithPreferences(p PreferenceStore) Option {
	return func(s *Service) { s.prefs = p }
}

// WithMetrics records utterance latency and failures on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service serializes speech on one synthesizer. All methods are safe for
// concurrent use.
type Service struct {
	synth   Synthesizer
	prefs   PreferenceStore
	env     Environment
	metrics *observe.Metrics

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc

	voicesMu sync.Mutex
	voices   []Voice
}

// New returns a Service speaking through synth.
func New(synth Synthesizer, opts ...Option) *Service {
	s := &Service{
		synth: synth,
		env:   DetectEnvironment("auto"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.prefs == nil {
		s.prefs = &memoryPrefs{}
	}
	return s
}

// Environment returns the environment the Service was configured with.
func (s *Service) Environment() Environment { return s.env }

// Speak cancels any utterance in flight and speaks text. It returns nil once
// playback has finished, [ErrInterrupted] when superseded, and a
// *SynthesisError when the synthesizer fails.
func (s *Service) Speak(ctx context.Context, text string, opts Options) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			s.cancel = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	if text == "" {
		return nil
	}

	u := s.utterance(sctx, text, opts)
	start := time.Now()
	err := s.synth.Speak(sctx, u)

	if s.superseded(gen) {
		return ErrInterrupted
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.SynthesisErrors.Add(ctx, 1)
		}
		return &SynthesisError{Reason: "speak failed", Err: err}
	}
	if s.metrics != nil {
		s.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	}
	return nil
}

// Cancel stops the utterance in flight, if any.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

func (s *Service) superseded(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

// utterance fills defaults and picks the voice.
func (s *Service) utterance(ctx context.Context, text string, opts Options) Utterance {
	def := s.env.Defaults()
	u := Utterance{Text: text, Lang: opts.Lang, Rate: opts.Rate, Pitch: opts.Pitch, Volume: opts.Volume}
	if u.Lang == "" {
		u.Lang = def.Lang
	}
	if u.Rate == 0 {
		u.Rate = def.Rate
	}
	if u.Pitch == 0 {
		u.Pitch = def.Pitch
	}
	if u.Volume == 0 {
		u.Volume = def.Volume
	}

	voices, err := s.Voices(ctx)
	if err != nil {
		slog.Warn("playback: listing voices failed, using synthesizer default", "err", err)
	}
	preferred, err := s.prefs.PreferredVoiceName(ctx)
	if err != nil {
		slog.Warn("playback: reading preferred voice failed", "err", err)
	}
	u.Voice = SelectVoice(voices, u.Lang, preferred, s.env)
	return u
}

// Voices returns the synthesizer's voices. A non-empty list is cached.
func (s *Service) Voices(ctx context.Context) ([]Voice, error) {
	s.voicesMu.Lock()
	defer s.voicesMu.Unlock()
	if len(s.voices) > 0 {
		return append([]Voice(nil), s.voices...), nil
	}
	voices, err := s.synth.Voices(ctx)
	if err != nil {
		return nil, fmt.Errorf("playback: list voices: %w", err)
	}
	s.voices = voices
	return append([]Voice(nil), voices...), nil
}

// PreferredVoice returns the stored preferred voice name, or "".
func (s *Service) PreferredVoice(ctx context.Context) (string, error) {
	name, err := s.prefs.PreferredVoiceName(ctx)
	if err != nil {
		return "", fmt.Errorf("playback: preferred voice: %w", err)
	}
	return name, nil
}

// SetPreferredVoice stores name as the preferred voice. An empty name clears
// the preference; names the synthesizer does not offer are rejected with
// [ErrUnknownVoice].
func (s *Service) SetPreferredVoice(ctx context.Context, name string) error {
	if name != "" {
		voices, err := s.Voices(ctx)
		if err != nil {
			return err
		}
		if indexOf(voices, func(v Voice) bool { return v.Name == name }) < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownVoice, name)
		}
	}
	if err := s.prefs.SetPreferredVoiceName(ctx, name); err != nil {
		return fmt.Errorf("playback: save preferred voice: %w", err)
	}
	return nil
}

// memoryPrefs is the PreferenceStore used when none is configured.
type memoryPrefs struct {
	mu   sync.Mutex
	name string
}

func (p *memoryPrefs) PreferredVoiceName(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name, nil
}

func (p *memoryPrefs) SetPreferredVoiceName(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
	return nil
}
