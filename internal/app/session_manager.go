package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lexivox/internal/exercise"
	"github.com/MrWong99/lexivox/pkg/types"
)

var (
	// ErrSessionActive is returned by [SessionManager.Start] while a session
	// runs.
	ErrSessionActive = errors.New("app: a session is already active")

	// ErrNoSession is returned when there is no session to stop or wait for.
	ErrNoSession = errors.New("app: no session")

	// ErrNoWords is returned when a session would start without words.
	ErrNoWords = errors.New("app: no words to practice")
)

// SessionInfo holds metadata about a practice session.
type SessionInfo struct {
	// SessionID is derived from the start time, e.g. "session-20261017T091500Z".
	SessionID string
	StartedAt time.Time

	// Kinds lists the exercise kinds in the order they run.
	Kinds []string

	// WordIDs lists the selected words in order.
	WordIDs []string
}

// SessionManagerConfig holds the dependencies of a [SessionManager].
type SessionManagerConfig struct {
	Strategies []exercise.Strategy

	// Recorders persists answers. Nil keeps only the session statistics.
	Recorders exercise.Recorders

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// run is one started session.
type run struct {
	info    SessionInfo
	session *exercise.Session
	cancel  context.CancelFunc
	done    chan struct{}
	err     error // set before done is closed
}

// SessionManager runs practice sessions one at a time. All exported methods
// are safe for concurrent use.
type SessionManager struct {
	strategies []exercise.Strategy
	recorders  exercise.Recorders
	now        func() time.Time

	mu      sync.Mutex
	current *run // nil when idle
	last    *run
}

// NewSessionManager creates a [SessionManager].
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	sm := &SessionManager{
		strategies: cfg.Strategies,
		recorders:  cfg.Recorders,
		now:        cfg.Now,
	}
	if sm.now == nil {
		sm.now = time.Now
	}
	return sm
}

// Start begins a session over words in the background. The session ends when
// every strategy has finished, when [SessionManager.Stop] is called or when
// ctx ends.
func (sm *SessionManager) Start(ctx context.Context, words []types.Word) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current != nil {
		return fmt.Errorf("%w (id=%s)", ErrSessionActive, sm.current.info.SessionID)
	}
	if len(words) == 0 {
		return ErrNoWords
	}

	now := sm.now().UTC()
	info := SessionInfo{
		SessionID: "session-" + now.Format("20060102T150405Z"),
		StartedAt: now,
	}
	for _, st := range sm.strategies {
		info.Kinds = append(info.Kinds, st.Kind())
	}
	for _, w := range words {
		info.WordIDs = append(info.WordIDs, w.ID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		info:    info,
		session: exercise.NewSession(sm.strategies, exercise.WithRecorders(sm.recorders)),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	sm.current = r

	slog.Info("session started", "session_id", info.SessionID, "kinds", info.Kinds, "words", len(words))

	go func() {
		err := r.session.Run(runCtx, words)
		cancel()

		sm.mu.Lock()
		r.err = err
		if sm.current == r {
			sm.current = nil
		}
		sm.last = r
		sm.mu.Unlock()
		close(r.done)

		st := r.session.Stats()
		slog.Info("session ended",
			"session_id", info.SessionID,
			"answers", st.Answers,
			"correct", st.Correct,
			"best_streak", st.BestStreak,
			"err", err,
		)
	}()
	return nil
}

// Stop ends the active session and waits for it to wind down.
func (sm *SessionManager) Stop() error {
	sm.mu.Lock()
	r := sm.current
	sm.mu.Unlock()
	if r == nil {
		return ErrNoSession
	}
	r.cancel()
	<-r.done
	return nil
}

// Wait blocks until the active (or, when idle, the last) session has ended
// and returns its error. A session stopped through Stop or its context
// returns context.Canceled.
func (sm *SessionManager) Wait(ctx context.Context) error {
	sm.mu.Lock()
	r := sm.current
	if r == nil {
		r = sm.last
	}
	sm.mu.Unlock()
	if r == nil {
		return ErrNoSession
	}

	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsActive reports whether a session is running.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current != nil
}

// Info returns the metadata of the active session. ok is false when idle.
func (sm *SessionManager) Info() (info SessionInfo, ok bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return SessionInfo{}, false
	}
	return sm.current.info, true
}

// Stats returns the statistics of the active session, or of the last one
// when idle.
func (sm *SessionManager) Stats() exercise.Stats {
	sm.mu.Lock()
	r := sm.current
	if r == nil {
		r = sm.last
	}
	sm.mu.Unlock()
	if r == nil {
		return exercise.Stats{}
	}
	return r.session.Stats()
}
