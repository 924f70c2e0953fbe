package recognition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/lexivox/internal/observe"
)

// Option is a functional option for configuring a [Manager].
type Option func(*Manager)

// WithMetrics records session latency, errors and stale discards on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// Manager owns the recognition capability and enforces that at most one
// session is active. All methods are safe for concurrent use, except that
// they must not be called from inside an onResult callback.
type Manager struct {
	capability Capability
	metrics    *observe.Metrics

	mu      sync.Mutex
	current *Session
	token   uint64
	closed  bool
}

// NewManager returns a Manager driving capability.
func NewManager(capability Capability, opts ...Option) *Manager {
	m := &Manager{capability: capability}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Supported reports whether the capability can run here.
func (m *Manager) Supported() bool {
	return m.capability != nil && m.capability.Supported()
}

// CurrentToken returns the token of the active session, or 0.
func (m *Manager) CurrentToken() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0
	}
	return m.current.token
}

// StartListening force-stops any active session and starts a new one. Each
// accepted event is passed to onResult synchronously and in order. onResult
// must not call back into the Manager.
//
// The returned Session settles once; see [Session.Wait].
func (m *Manager) StartListening(ctx context.Context, opts Options, onResult func(Result)) (*Session, error) {
	if !m.Supported() {
		return nil, ErrRecognitionUnsupported
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	prev := m.current
	m.token++
	s := newSession(m, m.token, onResult)
	m.current = s
	m.mu.Unlock()

	if prev != nil {
		prev.forceStop()
	}

	if opts.MaxAlternatives <= 0 {
		opts.MaxAlternatives = 1
	}
	sctx, cancel := context.WithCancel(ctx)
	stream, err := m.capability.Start(sctx, opts)
	if err != nil {
		cancel()
		rerr := failure("start failed", err)
		s.settle(Result{Token: s.token}, rerr)
		m.detach(s)
		if m.metrics != nil {
			m.metrics.RecognitionErrors.Add(ctx, 1)
		}
		return nil, rerr
	}

	s.mu.Lock()
	if s.stopped {
		// Superseded while the capability was starting.
		s.mu.Unlock()
		cancel()
		_ = stream.Abort()
		return s, nil
	}
	s.stream = stream
	s.cancel = cancel
	s.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveRecognitions.Add(ctx, 1)
	}
	slog.Debug("recognition: session started", "token", s.token, "language", opts.Language)
	go s.pump(stream)
	return s, nil
}

// StopListening asks the active session to finish gracefully. In-flight
// speech is finalized and delivered. It is a no-op when nothing is active.
func (m *Manager) StopListening() error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.stop()
}

// ForceStop invalidates the active session immediately. No onResult call
// starts after ForceStop returns, and the session settles with
// [ErrStaleResult].
func (m *Manager) ForceStop() {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()
	if s != nil {
		s.forceStop()
	}
}

// Close force-stops the active session. Later StartListening calls fail with
// [ErrClosed].
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.ForceStop()
	return nil
}

// isCurrent reports whether token belongs to the active session.
func (m *Manager) isCurrent(token uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.token == token
}

// detach clears s if it is still the active session.
func (m *Manager) detach(s *Session) {
	m.mu.Lock()
	if m.current == s {
		m.current = nil
	}
	m.mu.Unlock()
}

func (m *Manager) recordStale() {
	if m.metrics != nil {
		m.metrics.RecordStaleDiscard(context.Background(), "recognition")
	}
}

// Session is one capture. It is created by [Manager.StartListening].
type Session struct {
	m        *Manager
	token    uint64
	onResult func(Result)
	started  time.Time

	// deliverMu is held while onResult runs so ForceStop can wait out an
	// in-progress delivery.
	deliverMu sync.Mutex
	detached  atomic.Bool

	mu       sync.Mutex
	stream   Stream
	cancel   context.CancelFunc
	stopped  bool // force stopped or superseded
	last     Result
	hasLast  bool
	settled  bool
	result   Result
	err      error
	done     chan struct{}
}

func newSession(m *Manager, token uint64, onResult func(Result)) *Session {
	return &Session{
		m:        m,
		token:    token,
		onResult: onResult,
		started:  time.Now(),
		done:     make(chan struct{}),
	}
}

// Token identifies the session.
func (s *Session) Token() uint64 { return s.token }

// Done is closed once the session has settled.
func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the settlement. It is only meaningful after Done is closed.
//
// A session settles with the accepted final result; with the last partial
// result when the recognizer ends without a final; with an empty result when
// nothing was heard; with a *RecognitionError on a hard failure; or with
// [ErrStaleResult] when it was force stopped or superseded.
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Wait blocks until the session settles or ctx is done.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case <-s.done:
		return s.Result()
	case <-ctx.Done():
		return Result{Token: s.token}, ctx.Err()
	}
}

// Cancel force-stops s alone, leaving any newer session running. It is a
// no-op once s has settled.
func (s *Session) Cancel() { s.forceStop() }

// pump reads stream events until the stream ends or the session is
// detached.
func (s *Session) pump(stream Stream) {
	for ev := range stream.Events() {
		if s.detached.Load() || !s.m.isCurrent(s.token) {
			s.m.recordStale()
			continue
		}
		if ev.Err != nil {
			s.finish(Result{Token: s.token}, failure(ev.Err.Error(), ev.Err))
			_ = stream.Abort()
			continue
		}

		r := Result{Token: s.token, IsFinal: ev.IsFinal}
		if len(ev.Alternatives) > 0 {
			r.Transcript = ev.Alternatives[0].Transcript
			r.Confidence = ev.Alternatives[0].Confidence
		}
		if !s.deliver(r) {
			s.m.recordStale()
			continue
		}
		if r.IsFinal {
			s.finish(r, nil)
			_ = stream.Abort()
		}
	}

	// The recognizer ended the session.
	s.mu.Lock()
	r, ok := s.last, s.hasLast
	s.mu.Unlock()
	if !ok {
		r = Result{Token: s.token}
	}
	s.finish(r, nil)
}

// deliver records r and hands it to onResult unless the session was detached
// in the meantime.
func (s *Session) deliver(r Result) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.detached.Load() {
		return false
	}
	s.mu.Lock()
	s.last, s.hasLast = r, true
	s.mu.Unlock()
	if s.onResult != nil {
		s.onResult(r)
	}
	return true
}

// finish settles the session, detaches it and releases the stream context.
func (s *Session) finish(r Result, err error) {
	s.detached.Store(true)
	if s.settle(r, err) {
		s.m.detach(s)
	}
}

// settle records the outcome once. It reports whether this call settled.
func (s *Session) settle(r Result, err error) bool {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return false
	}
	s.settled = true
	s.result, s.err = r, err
	cancel, hadStream := s.cancel, s.stream != nil
	s.mu.Unlock()
	close(s.done)

	if cancel != nil {
		cancel()
	}
	if met := s.m.metrics; met != nil && hadStream {
		ctx := context.Background()
		met.ActiveRecognitions.Add(ctx, -1)
		met.RecognitionDuration.Record(ctx, time.Since(s.started).Seconds())
		var rerr *RecognitionError
		if errors.As(err, &rerr) {
			met.RecognitionErrors.Add(ctx, 1)
		}
	}
	slog.Debug("recognition: session settled", "token", s.token, "final", r.IsFinal, "err", err)
	return true
}

// stop requests a graceful stop.
func (s *Session) stop() error {
	s.mu.Lock()
	stream, stopped := s.stream, s.stopped || s.settled
	s.mu.Unlock()
	if stopped || stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		return failure("stop failed", err)
	}
	return nil
}

// forceStop detaches the session, waits for any running onResult call and
// aborts the stream.
func (s *Session) forceStop() {
	s.detached.Store(true)
	// Wait out a delivery that is already running.
	s.deliverMu.Lock()
	s.deliverMu.Unlock() //nolint:staticcheck // empty critical section is a barrier

	s.mu.Lock()
	already := s.stopped || s.settled
	s.stopped = true
	stream := s.stream
	s.mu.Unlock()
	if already {
		return
	}

	s.settle(Result{Token: s.token}, ErrStaleResult)
	s.m.detach(s)
	if stream != nil {
		if err := stream.Abort(); err != nil {
			slog.Warn("recognition: abort failed", "token", s.token, "err", err)
		}
	}
}
