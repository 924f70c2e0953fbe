// Package mock provides in-memory implementations of [audio.Source],
// [audio.Sink] and [audio.Device] for unit tests.
//
// Both mocks are safe for concurrent use and record every call so tests can
// assert on formats, captured audio and interruptions.
//
//	src := &mock.Source{Frames: []audio.AudioFrame{{Data: pcm, SampleRate: 16000, Channels: 1}}}
//	sink := &mock.Sink{}
//	frames, _ := src.Capture(ctx, audio.Format{SampleRate: 16000, Channels: 1})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lexivox/pkg/audio"
)

// ─── Source ──────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// Frames are sent on the capture channel in order.
	Frames []audio.AudioFrame

	// HoldOpen keeps the capture channel open after Frames were sent until the
	// capture context is cancelled, like a live microphone.
	HoldOpen bool

	// CaptureErr, if non-nil, is returned by Capture.
	CaptureErr error

	// CaptureFormats records the format of every Capture call.
	CaptureFormats []audio.Format

	active int
}

// Capture records the call and streams Frames.
func (s *Source) Capture(ctx context.Context, f audio.Format) (<-chan audio.AudioFrame, error) {
	s.mu.Lock()
	s.CaptureFormats = append(s.CaptureFormats, f)
	if s.CaptureErr != nil {
		s.mu.Unlock()
		return nil, s.CaptureErr
	}
	frames := append([]audio.AudioFrame(nil), s.Frames...)
	hold := s.HoldOpen
	s.active++
	s.mu.Unlock()

	ch := make(chan audio.AudioFrame, len(frames))
	go func() {
		defer func() {
			s.mu.Lock()
			s.active--
			s.mu.Unlock()
			close(ch)
		}()
		for _, fr := range frames {
			select {
			case ch <- fr:
			case <-ctx.Done():
				return
			}
		}
		if hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// Active returns the number of captures still streaming. Thread-safe.
func (s *Source) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// CallCount returns the number of Capture calls. Thread-safe.
func (s *Source) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.CaptureFormats)
}

var _ audio.Source = (*Source)(nil)

// ─── Sink ────────────────────────────────────────────────────────────────────

// PlayCall records a single invocation of Sink.Play.
type PlayCall struct {
	Format audio.Format
	// Audio is everything read from the pcm channel before Play returned.
	Audio []byte
	// Interrupted reports whether Play returned because ctx was cancelled.
	Interrupted bool
}

// Sink is a mock implementation of [audio.Sink]. By default it consumes the
// stream as fast as it arrives.
type Sink struct {
	mu sync.Mutex

	// Block makes Play wait for ctx cancellation after the stream ends, which
	// simulates audio that never finishes playing.
	Block bool

	// PlayErr, if non-nil, is returned after the stream was consumed.
	PlayErr error

	// Calls records every Play call.
	Calls []PlayCall
}

// Play reads pcm to completion, honouring ctx cancellation.
func (s *Sink) Play(ctx context.Context, f audio.Format, pcm <-chan []byte) error {
	call := PlayCall{Format: f}
	defer func() {
		s.mu.Lock()
		s.Calls = append(s.Calls, call)
		s.mu.Unlock()
	}()

	for {
		select {
		case chunk, ok := <-pcm:
			if !ok {
				s.mu.Lock()
				block, err := s.Block, s.PlayErr
				s.mu.Unlock()
				if block {
					<-ctx.Done()
					call.Interrupted = true
					return ctx.Err()
				}
				return err
			}
			call.Audio = append(call.Audio, chunk...)
		case <-ctx.Done():
			call.Interrupted = true
			go audio.Drain(pcm)
			return ctx.Err()
		}
	}
}

// PlayCalls returns a copy of the recorded calls. Thread-safe.
func (s *Sink) PlayCalls() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PlayCall(nil), s.Calls...)
}

var _ audio.Sink = (*Sink)(nil)

// ─── Device ──────────────────────────────────────────────────────────────────

// Device is a mock implementation of [audio.Device] built from a [Source] and
// a [Sink].
type Device struct {
	Source
	Sink

	closeMu    sync.Mutex
	closeCalls int
}

// Close records the call.
func (d *Device) Close() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	d.closeCalls++
	return nil
}

// CloseCount returns the number of Close calls. Thread-safe.
func (d *Device) CloseCount() int {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	return d.closeCalls
}

var _ audio.Device = (*Device)(nil)
