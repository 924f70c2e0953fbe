// Package recognition runs speech recognition one session at a time.
//
// A [Manager] wraps a streaming recognition [Capability]. Every session gets a
// fresh token; starting a new session force-stops the previous one, and
// events belonging to a session whose token is no longer current are dropped
// before they reach the caller. A session settles exactly once, and its
// result can be awaited with [Session.Wait].
//
// There is no retry and no timeout. A recognizer that never ends a session
// keeps it open until the caller stops it.
package recognition

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrRecognitionUnsupported is returned when the capability is not
	// available in this environment.
	ErrRecognitionUnsupported = errors.New("recognition: unsupported")

	// ErrStaleResult settles a session that was force stopped or superseded.
	// It is not a user-facing failure.
	ErrStaleResult = errors.New("recognition: stale result")

	// ErrClosed is returned by StartListening after Close.
	ErrClosed = errors.New("recognition: manager closed")
)

// RecognitionError is a start or mid-capture failure of the capability.
type RecognitionError struct {
	Reason string
	Err    error
}

func (e *RecognitionError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Reason {
		return fmt.Sprintf("recognition: %s: %v", e.Reason, e.Err)
	}
	return "recognition: " + e.Reason
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// failure wraps err as a *RecognitionError.
func failure(reason string, err error) *RecognitionError {
	return &RecognitionError{Reason: reason, Err: err}
}

// Options configure one capture.
type Options struct {
	// Language is a BCP-47 tag such as "en-US".
	Language string

	// Continuous keeps capturing after the first utterance.
	Continuous bool

	// InterimResults requests partial hypotheses while the learner speaks.
	InterimResults bool

	// MaxAlternatives is the number of hypotheses per event. Zero means one.
	MaxAlternatives int

	// Hints are words the learner is expected to say. Recognizers that
	// support vocabulary boosting favour them.
	Hints []string
}

// Alternative is one hypothesis of an event.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Event is one message from the capability. Alternatives are ordered best
// first. A non-nil Err is a hard failure and ends the session.
type Event struct {
	Alternatives []Alternative
	IsFinal      bool
	Err          error
}

// Stream is one running capture on the capability.
type Stream interface {
	// Events delivers results in order and is closed when the capture ends.
	Events() <-chan Event

	// Stop ends capture gracefully. Speech already heard is finalized and
	// delivered before Events is closed.
	Stop() error

	// Abort ends capture immediately. Pending results are discarded.
	Abort() error
}

// Capability is the speech recognizer the Manager drives.
type Capability interface {
	// Supported reports whether recognition can run in this environment.
	Supported() bool

	// Start begins capturing with opts.
	Start(ctx context.Context, opts Options) (Stream, error)
}

// Result is what the caller sees for each accepted event and for the final
// settlement of a session.
type Result struct {
	Token      uint64
	Transcript string
	Confidence float64
	IsFinal    bool
}
