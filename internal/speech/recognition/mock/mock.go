// Package mock provides a scriptable recognition.Capability for tests.
//
// Each Start call creates a [Stream] the test drives by hand:
//
//	c := mock.NewCapability()
//	s, _ := mgr.StartListening(ctx, opts, onResult)
//	st := <-c.Started()
//	st.Partial("app")
//	st.Final("apple")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lexivox/internal/speech/recognition"
)

// Capability is a mock implementation of recognition.Capability.
type Capability struct {
	mu sync.Mutex

	// Unsupported makes Supported report false.
	Unsupported bool

	// StartErr, if non-nil, is returned from Start.
	StartErr error

	// IgnoreAbort makes streams keep their Events channel open after Abort,
	// like a recognizer that keeps firing events for a torn-down session.
	IgnoreAbort bool

	// FinalOnStop, if non-empty, is emitted as a final result when a stream
	// is stopped gracefully.
	FinalOnStop string

	// StartCalls records the options of every Start call.
	StartCalls []recognition.Options

	streams []*Stream
	started chan *Stream
}

// NewCapability returns a supported Capability.
func NewCapability() *Capability {
	return &Capability{started: make(chan *Stream, 64)}
}

// Supported implements recognition.Capability.
func (c *Capability) Supported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.Unsupported
}

// Start records the call and returns a new Stream.
func (c *Capability) Start(_ context.Context, opts recognition.Options) (recognition.Stream, error) {
	c.mu.Lock()
	c.StartCalls = append(c.StartCalls, opts)
	if c.StartErr != nil {
		err := c.StartErr
		c.mu.Unlock()
		return nil, err
	}
	s := NewStream()
	s.ignoreAbort = c.IgnoreAbort
	s.finalOnStop = c.FinalOnStop
	s.Opts = opts
	c.streams = append(c.streams, s)
	started := c.started
	c.mu.Unlock()

	if started != nil {
		started <- s
	}
	return s, nil
}

// Started delivers every stream as it is created.
func (c *Capability) Started() <-chan *Stream { return c.started }

// Streams returns all streams created so far.
func (c *Capability) Streams() []*Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Stream(nil), c.streams...)
}

// CallCount returns the number of Start calls.
func (c *Capability) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.StartCalls)
}

// Stream is a hand-driven recognition.Stream.
type Stream struct {
	// Opts are the options the stream was started with.
	Opts recognition.Options

	mu          sync.Mutex
	events      chan recognition.Event
	closed      bool
	ignoreAbort bool
	finalOnStop string
	stopCalls   int
	abortCalls  int
}

// NewStream returns an open Stream.
func NewStream() *Stream {
	return &Stream{events: make(chan recognition.Event, 64)}
}

// Events implements recognition.Stream.
func (s *Stream) Events() <-chan recognition.Event { return s.events }

// Emit sends ev unless the stream has ended. It reports whether ev was sent.
func (s *Stream) Emit(ev recognition.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events <- ev
	return true
}

// Partial emits a non-final result.
func (s *Stream) Partial(text string) bool {
	return s.Emit(recognition.Event{Alternatives: []recognition.Alternative{{Transcript: text, Confidence: 0.5}}})
}

// Final emits a final result.
func (s *Stream) Final(text string) bool {
	return s.Emit(recognition.Event{Alternatives: []recognition.Alternative{{Transcript: text, Confidence: 0.9}}, IsFinal: true})
}

// Fail emits a hard error.
func (s *Stream) Fail(err error) bool {
	return s.Emit(recognition.Event{Err: err})
}

// End closes Events as a recognizer does when it finishes on its own.
func (s *Stream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Stop records the call, emits FinalOnStop if set and ends the stream.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	if !s.closed && s.finalOnStop != "" {
		s.events <- recognition.Event{Alternatives: []recognition.Alternative{{Transcript: s.finalOnStop, Confidence: 0.9}}, IsFinal: true}
	}
	s.closeLocked()
	return nil
}

// Abort records the call and ends the stream unless IgnoreAbort was set.
func (s *Stream) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortCalls++
	if !s.ignoreAbort {
		s.closeLocked()
	}
	return nil
}

func (s *Stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// StopCalls returns the number of Stop calls.
func (s *Stream) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// AbortCalls returns the number of Abort calls.
func (s *Stream) AbortCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abortCalls
}

var (
	_ recognition.Capability = (*Capability)(nil)
	_ recognition.Stream     = (*Stream)(nil)
)
