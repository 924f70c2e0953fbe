// Package mock provides a test double for playback.Synthesizer.
//
// By default Speak returns SpeakErr immediately. With Manual set, every Speak
// call blocks until the test completes it or its context is cancelled:
//
//	s := mock.NewSynthesizer()
//	s.Manual = true
//	go svc.Speak(ctx, "a round fruit", playback.Options{})
//	u := <-s.Started()
//	s.Complete(nil)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lexivox/internal/speech/playback"
)

// Synthesizer is a mock implementation of playback.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// VoicesResult is returned by Voices.
	VoicesResult []playback.Voice

	// VoicesErr, if non-nil, is returned by Voices.
	VoicesErr error

	// SpeakErr is returned by Speak when Manual is false.
	SpeakErr error

	// Manual makes Speak block until Complete is called.
	Manual bool

	calls   []playback.Utterance
	pending []chan error
	started chan playback.Utterance

	voicesCalls int
}

// NewSynthesizer returns a Synthesizer with a buffered Started channel.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{started: make(chan playback.Utterance, 64)}
}

// Voices records the call and returns VoicesResult, VoicesErr.
func (s *Synthesizer) Voices(context.Context) ([]playback.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voicesCalls++
	return s.VoicesResult, s.VoicesErr
}

// Speak records u and returns according to Manual and SpeakErr.
func (s *Synthesizer) Speak(ctx context.Context, u playback.Utterance) error {
	s.mu.Lock()
	s.calls = append(s.calls, u)
	if !s.Manual {
		err := s.SpeakErr
		s.mu.Unlock()
		s.notify(u)
		return err
	}
	ch := make(chan error, 1)
	s.pending = append(s.pending, ch)
	s.mu.Unlock()
	s.notify(u)

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		s.remove(ch)
		return ctx.Err()
	}
}

func (s *Synthesizer) notify(u playback.Utterance) {
	if s.started == nil {
		return
	}
	select {
	case s.started <- u:
	default:
	}
}

func (s *Synthesizer) remove(ch chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.pending {
		if p == ch {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// Started delivers every utterance as Speak is entered.
func (s *Synthesizer) Started() <-chan playback.Utterance { return s.started }

// Complete finishes the oldest blocked Speak call with err. It reports
// whether a call was waiting.
func (s *Synthesizer) Complete(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return false
	}
	ch := s.pending[0]
	s.pending = s.pending[1:]
	ch <- err
	return true
}

// Pending returns the number of blocked Speak calls.
func (s *Synthesizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Calls returns a copy of every utterance passed to Speak.
func (s *Synthesizer) Calls() []playback.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]playback.Utterance(nil), s.calls...)
}

// Texts returns the text of every utterance passed to Speak.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, u := range s.calls {
		out[i] = u.Text
	}
	return out
}

// VoicesCallCount returns the number of Voices calls.
func (s *Synthesizer) VoicesCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voicesCalls
}

var _ playback.Synthesizer = (*Synthesizer)(nil)
