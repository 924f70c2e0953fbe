package exercise

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/lexivox/pkg/types"
)

// Strategy runs one exercise kind over the session's words and reports every
// answer to answers.
type Strategy interface {
	Kind() string
	Run(ctx context.Context, words []types.Word, answers AnswerObserver) error
}

// Stats summarises the answers of a session.
type Stats struct {
	Answers    int
	Correct    int
	Incorrect  int
	Streak     int
	BestStreak int

	// Kind is the exercise kind running now, or the last one run.
	Kind string

	// Completed lists the kinds that ran to the end, in order.
	Completed []string
}

// Accuracy returns the share of correct answers in [0, 1].
func (s Stats) Accuracy() float64 {
	if s.Answers == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Answers)
}

// Recorders returns the observer that persists answers of the given kind.
type Recorders func(kind string) AnswerObserver

// SessionOption is a functional option for configuring a [Session].
type SessionOption func(*Session)

// WithRecorders forwards every answer to the observer returned for its kind.
func WithRecorders(r Recorders) SessionOption {
	return func(s *Session) { s.recorders = r }
}

// Session runs a sequence of exercise strategies over one word selection.
// Stats is safe to call while Run is in progress.
type Session struct {
	strategies []Strategy
	recorders  Recorders

	mu    sync.Mutex
	stats Stats
}

// NewSession returns a Session that runs strategies in order.
func NewSession(strategies []Strategy, opts ...SessionOption) *Session {
	s := &Session{strategies: strategies}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run executes every strategy in order. It stops at the first strategy that
// fails or when ctx ends.
func (s *Session) Run(ctx context.Context, words []types.Word) error {
	for _, st := range s.strategies {
		if err := ctx.Err(); err != nil {
			return err
		}
		kind := st.Kind()
		s.mu.Lock()
		s.stats.Kind = kind
		s.mu.Unlock()

		slog.Info("exercise: session stage started", "kind", kind, "words", len(words))
		if err := st.Run(ctx, words, s.observer(kind)); err != nil {
			return fmt.Errorf("exercise: %s: %w", kind, err)
		}

		s.mu.Lock()
		s.stats.Completed = append(s.stats.Completed, kind)
		s.mu.Unlock()
	}
	return nil
}

// Stats returns the statistics so far.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Completed = append([]string(nil), s.stats.Completed...)
	return out
}

func (s *Session) observer(kind string) AnswerObserver {
	var next AnswerObserver
	if s.recorders != nil {
		next = s.recorders(kind)
	}
	return AnswerFunc(func(ctx context.Context, wordID, answer string, correct bool) error {
		s.record(correct)
		if next == nil {
			return nil
		}
		return next.OnAnswer(ctx, wordID, answer, correct)
	})
}

func (s *Session) record(correct bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.stats
	st.Answers++
	if correct {
		st.Correct++
		st.Streak++
		st.BestStreak = max(st.BestStreak, st.Streak)
		return
	}
	st.Incorrect++
	st.Streak = 0
}

// SpokenStrategy runs a [Controller] of one variant.
type SpokenStrategy struct {
	Variant    Variant
	Recognizer Recognizer
	Speaker    Speaker
	Options    []Option

	// OnStart is called with every controller before it runs so the caller
	// can drive it.
	OnStart func(*Controller)
}

// Kind returns the variant name.
func (s *SpokenStrategy) Kind() string { return string(s.Variant) }

// Run runs a controller over words until it finishes or is closed.
func (s *SpokenStrategy) Run(ctx context.Context, words []types.Word, answers AnswerObserver) error {
	opts := append([]Option{WithVariant(s.Variant), WithKind(s.Kind())}, s.Options...)
	opts = append(opts, WithAnswerObserver(answers))
	c := New(words, s.Recognizer, s.Speaker, opts...)
	if s.OnStart != nil {
		s.OnStart(c)
	}
	return c.Run(ctx)
}

var _ Strategy = (*SpokenStrategy)(nil)
