// Package backend adapts the streaming STT and TTS providers and the audio
// devices to the capability interfaces the recognition and playback services
// consume.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/lexivox/internal/speech/recognition"
	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/stt"
	"github.com/MrWong99/lexivox/pkg/types"
)

// hintBoost is the keyword boost given to expected words.
const hintBoost = 2.0

// RecognizerOption is a functional option for [Recognizer].
type RecognizerOption func(*Recognizer)

// WithCaptureFormat sets the format requested from the microphone. Default:
// 16 kHz mono.
func WithCaptureFormat(f audio.Format) RecognizerOption {
	return func(r *Recognizer) { r.capture = f }
}

// WithRecognitionFormat sets the format sent to the STT provider. Default:
// 16 kHz mono.
func WithRecognitionFormat(f audio.Format) RecognizerOption {
	return func(r *Recognizer) { r.target = f }
}

// Recognizer implements recognition.Capability by streaming microphone audio
// into an STT provider.
type Recognizer struct {
	provider stt.Provider
	mic      audio.Source
	capture  audio.Format
	target   audio.Format
}

// NewRecognizer returns a Recognizer. A nil provider or microphone makes it
// unsupported.
func NewRecognizer(provider stt.Provider, mic audio.Source, opts ...RecognizerOption) *Recognizer {
	r := &Recognizer{
		provider: provider,
		mic:      mic,
		capture:  audio.Format{SampleRate: 16000, Channels: 1},
		target:   audio.Format{SampleRate: 16000, Channels: 1},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Supported reports whether both a provider and a microphone are configured.
func (r *Recognizer) Supported() bool {
	return r.provider != nil && r.mic != nil
}

// Start opens the microphone and an STT session.
func (r *Recognizer) Start(ctx context.Context, opts recognition.Options) (recognition.Stream, error) {
	if !r.Supported() {
		return nil, recognition.ErrRecognitionUnsupported
	}
	sessCtx, cancelSess := context.WithCancel(ctx)
	micCtx, cancelMic := context.WithCancel(sessCtx)

	sess, err := r.provider.StartStream(sessCtx, stt.StreamConfig{
		SampleRate:      r.target.SampleRate,
		Channels:        r.target.Channels,
		Language:        opts.Language,
		InterimResults:  opts.InterimResults,
		MaxAlternatives: opts.MaxAlternatives,
		Keywords:        keywords(opts.Hints),
	})
	if err != nil {
		cancelMic()
		cancelSess()
		return nil, fmt.Errorf("backend: start stt stream: %w", err)
	}

	frames, err := r.mic.Capture(micCtx, r.capture)
	if err != nil {
		cancelMic()
		_ = sess.Close()
		cancelSess()
		return nil, fmt.Errorf("backend: open microphone: %w", err)
	}

	s := &sttStream{
		sess:       sess,
		continuous: opts.Continuous,
		events:     make(chan recognition.Event, 32),
		aborted:    make(chan struct{}),
		fed:        make(chan struct{}),
		cancelMic:  cancelMic,
		cancelSess: cancelSess,
	}
	go s.feed(audio.ConvertStream(frames, r.target))
	go s.forward()
	return s, nil
}

func keywords(hints []string) []types.KeywordBoost {
	if len(hints) == 0 {
		return nil
	}
	out := make([]types.KeywordBoost, 0, len(hints))
	for _, h := range hints {
		if h != "" {
			out = append(out, types.KeywordBoost{Keyword: h, Boost: hintBoost})
		}
	}
	return out
}

// sttStream is one capture. feed pushes audio into the session; forward
// turns transcripts into events and is the only writer of events.
type sttStream struct {
	sess       stt.SessionHandle
	continuous bool
	events     chan recognition.Event

	aborted   chan struct{}
	abortOnce sync.Once
	fed       chan struct{} // closed when feed returns

	stopOnce   sync.Once
	stopErr    error
	cancelMic  context.CancelFunc
	cancelSess context.CancelFunc
}

func (s *sttStream) Events() <-chan recognition.Event { return s.events }

// Stop closes the microphone, waits for buffered audio to reach the
// provider and closes the session so it emits its last finals.
func (s *sttStream) Stop() error {
	s.stopOnce.Do(func() {
		s.cancelMic()
		<-s.fed
		if err := s.sess.Close(); err != nil {
			s.stopErr = fmt.Errorf("backend: close stt session: %w", err)
		}
		s.cancelSess()
	})
	return s.stopErr
}

// Abort discards pending results and tears the session down in the
// background.
func (s *sttStream) Abort() error {
	s.abortOnce.Do(func() {
		close(s.aborted)
		go func() { _ = s.Stop() }()
	})
	return nil
}

func (s *sttStream) feed(frames <-chan audio.AudioFrame) {
	defer close(s.fed)
	for frame := range frames {
		if err := s.sess.SendAudio(frame.Data); err != nil {
			slog.Debug("backend: stt session stopped accepting audio", "err", err)
			go audio.Drain(frames)
			return
		}
	}
}

func (s *sttStream) forward() {
	defer close(s.events)
	partials, finals := s.sess.Partials(), s.sess.Finals()
	for partials != nil || finals != nil {
		select {
		case <-s.aborted:
			if partials != nil {
				go audio.Drain(partials)
			}
			if finals != nil {
				go audio.Drain(finals)
			}
			return
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			s.send(toEvent(t, false))
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			// Streaming recognizers commit empty finals over silence.
			if strings.TrimSpace(t.Text) == "" {
				continue
			}
			s.send(toEvent(t, true))
			if !s.continuous {
				go func() { _ = s.Stop() }()
			}
		}
	}
}

func (s *sttStream) send(ev recognition.Event) {
	select {
	case s.events <- ev:
	case <-s.aborted:
	}
}

func toEvent(t stt.Transcript, final bool) recognition.Event {
	ev := recognition.Event{IsFinal: final}
	for _, h := range t.Hypotheses() {
		ev.Alternatives = append(ev.Alternatives, recognition.Alternative{Transcript: h.Text, Confidence: h.Confidence})
	}
	return ev
}

var (
	_ recognition.Capability = (*Recognizer)(nil)
	_ recognition.Stream     = (*sttStream)(nil)
)
