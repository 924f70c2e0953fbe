package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/lexivox/internal/exercise"
)

// RecorderOption is a functional option for [NewRecorder].
type RecorderOption func(*Recorder)

// WithIncrements replaces the per-kind increments.
func WithIncrements(inc Increments) RecorderOption {
	return func(r *Recorder) { r.inc = inc }
}

// WithClock sets the clock that decides which day an answer counts for.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// Recorder applies answers to a [Store]. Updates of one recorder are
// serialised so the read-modify-write of a score is not interleaved.
type Recorder struct {
	store Store
	inc   Increments
	now   func() time.Time

	mu sync.Mutex
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, inc: DefaultIncrements(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Record applies one answer of kind for wordID and returns the new score.
func (r *Recorder) Record(ctx context.Context, kind, wordID string, correct bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, err := r.store.Score(ctx, wordID)
	if err != nil && !errors.Is(err, ErrWordNotFound) {
		return 0, fmt.Errorf("progress: record %q: %w", wordID, err)
	}
	score := r.inc.Apply(old, kind, correct)
	if err := r.store.SaveScore(ctx, wordID, score); err != nil {
		return 0, fmt.Errorf("progress: record %q: %w", wordID, err)
	}

	d := Daily{Day: Day(r.now()), Answers: 1}
	if correct {
		d.CorrectAnswers = 1
	}
	if old == 0 && score > 0 {
		d.WordsAdded = 1
	}
	if old < MaxScore && score >= MaxScore {
		d.WordsLearned = 1
	}
	if err := r.store.AddDaily(ctx, d); err != nil {
		return score, fmt.Errorf("progress: daily statistics: %w", err)
	}

	slog.Debug("progress: answer recorded",
		"word_id", wordID, "kind", kind, "correct", correct, "old", old, "score", score)
	return score, nil
}

// ForKind returns an observer that records answers of kind.
func (r *Recorder) ForKind(kind string) exercise.AnswerObserver {
	return exercise.AnswerFunc(func(ctx context.Context, wordID, _ string, correct bool) error {
		_, err := r.Record(ctx, kind, wordID, correct)
		return err
	})
}
