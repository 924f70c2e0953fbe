// Package whisper provides an offline stt.Provider backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// whisper.cpp is not a streaming recognizer, so each session segments the
// incoming audio on silence and runs inference once per utterance. One final
// transcript is emitted per utterance; with interim results enabled the same
// text is emitted as a partial first so live displays update.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/stt"
	"github.com/MrWong99/lexivox/pkg/types"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// defaultRMSThreshold is the energy (int16 scale) below which a chunk is
	// treated as silence.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 700
	defaultMaxBufferDurationMs = 10_000
)

var errSessionClosed = errors.New("whisper: session is closed")

// transcribeFunc runs inference over mono float32 samples.
type transcribeFunc func(samples []float32, language, prompt string) (string, error)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default language (e.g. "en", "de"). Region suffixes
// such as "en-US" are accepted and trimmed.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = baseLanguage(lang) }
}

// WithSampleRate sets the default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithSilenceThresholdMs sets how much trailing silence ends an utterance.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) { p.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs caps the length of a single utterance.
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) { p.maxBufferDurationMs = ms }
}

// Provider implements stt.Provider on a locally loaded whisper model. The
// model is loaded once and shared by all sessions.
type Provider struct {
	model      whisperlib.Model
	transcribe transcribeFunc

	// whisper.cpp saturates the CPU; one inference at a time keeps the UI
	// responsive.
	inferMu sync.Mutex

	language            string
	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
}

// New loads the model at modelPath. The caller must Close the provider.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := newProvider(opts...)
	p.model = model
	p.transcribe = p.infer
	return p, nil
}

func newProvider(opts ...Option) *Provider {
	p := &Provider{
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Close releases the model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a new session. Zero config values fall back to the
// provider defaults.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: start stream: %w", err)
	}

	f := audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	if f.SampleRate <= 0 {
		f.SampleRate = p.sampleRate
	}
	if f.Channels <= 0 {
		f.Channels = 1
	}
	lang := baseLanguage(cfg.Language)
	if lang == "" {
		lang = p.language
	}

	s := &session{
		provider: p,
		format:   f,
		language: lang,
		interim:  cfg.InterimResults,
		prompt:   keywordPrompt(cfg.Keywords),
		audioCh:  make(chan []byte, 256),
		partials: make(chan stt.Transcript, 16),
		finals:   make(chan stt.Transcript, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.processLoop()
	return s, nil
}

// infer runs whisper.cpp on samples using a fresh context.
func (p *Provider) infer(samples []float32, language, prompt string) (string, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(language); err != nil {
		slog.Warn("whisper: unsupported language, using model default", "language", language, "err", err)
	}
	if prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// ---- session ----

type session struct {
	provider *Provider
	format   audio.Format
	language string
	interim  bool

	promptMu sync.Mutex
	prompt   string

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.stop:
		return errSessionClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.stop:
		return errSessionClosed
	}
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }

func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords replaces the initial prompt used to bias the next utterance.
func (s *session) SetKeywords(keywords []types.KeywordBoost) error {
	s.promptMu.Lock()
	s.prompt = keywordPrompt(keywords)
	s.promptMu.Unlock()
	return nil
}

// Close stops accepting audio, transcribes whatever speech is buffered and
// closes both channels.
func (s *session) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

// processLoop owns the utterance buffer. It is the only writer of partials
// and finals.
func (s *session) processLoop() {
	defer close(s.done)
	defer close(s.partials)
	defer close(s.finals)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
	)
	bytesPerMs := s.format.BytesPerMillisecond()
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.provider.maxBufferDurationMs * bytesPerMs

	flush := func() {
		pcm, speech := buffer, hadSpeech
		buffer, hadSpeech, silenceMs = nil, false, 0
		if len(pcm) == 0 || !speech {
			return
		}
		s.promptMu.Lock()
		prompt := s.prompt
		s.promptMu.Unlock()

		s.provider.inferMu.Lock()
		text, err := s.provider.transcribe(audio.ToFloat32(pcm, s.format.Channels), s.language, prompt)
		s.provider.inferMu.Unlock()
		if err != nil {
			slog.Error("whisper: inference failed", "err", err)
			return
		}
		if text == "" {
			return
		}
		if s.interim {
			s.partials <- stt.Transcript{Text: text}
		}
		s.finals <- stt.Transcript{Text: text, IsFinal: true, Duration: audio.Duration(pcm, s.format)}
	}

	for {
		select {
		case <-s.stop:
			// Take what was queued before Close.
			for {
				select {
				case chunk := <-s.audioCh:
					buffer = append(buffer, chunk...)
					if audio.RMS(chunk) >= defaultRMSThreshold {
						hadSpeech = true
					}
				default:
					flush()
					return
				}
			}

		case chunk := <-s.audioCh:
			chunkMs := int(audio.Duration(chunk, s.format).Milliseconds())
			if audio.RMS(chunk) < defaultRMSThreshold {
				if !hadSpeech {
					continue
				}
				silenceMs += chunkMs
				buffer = append(buffer, chunk...)
				if silenceMs >= s.provider.silenceThresholdMs {
					flush()
				}
				continue
			}
			hadSpeech = true
			silenceMs = 0
			buffer = append(buffer, chunk...)
			if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
				flush()
			}
		}
	}
}

// baseLanguage turns "en-US" into "en"; whisper only knows base languages.
func baseLanguage(tag string) string {
	base, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(base)
}

// keywordPrompt renders keyword hints as an initial prompt. whisper has no
// boosting API; seeding the decoder with the expected words has a similar
// effect.
func keywordPrompt(keywords []types.KeywordBoost) string {
	if len(keywords) == 0 {
		return ""
	}
	words := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw.Keyword != "" {
			words = append(words, kw.Keyword)
		}
	}
	return strings.Join(words, ", ")
}

var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*session)(nil)
)
