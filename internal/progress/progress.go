// Package progress scores vocabulary practice and persists the results.
//
// Every judged answer moves the learner's per-word score (0..100) by an
// increment that depends on the exercise kind: harder kinds earn more. A wrong
// answer costs half the kind's increment. The [Recorder] applies that rule
// against a [Store] and keeps a per-day tally of answers and learned words.
//
// Three stores are provided: [MemoryStore] for tests and throwaway sessions,
// [SQLiteStore] for a local progress file and [PostgresStore] for a shared
// database.
package progress

import (
	"context"
	"errors"
	"time"
)

// Exercise kinds in session order. [KindExplore] is the spoken introduction
// variant and is not part of the default order.
const (
	KindIntro          = "intro"
	KindMatching       = "matching"
	KindMultipleChoice = "multiple-choice"
	KindSpeech         = "speech"
	KindTyping         = "typing"
	KindExplore        = "explore"
)

// MaxScore is the score of a fully learned word.
const MaxScore = 100

// DefaultIncrement applies to kinds missing from [Increments].
const DefaultIncrement = 10

// DefaultOrder lists the kinds a session runs when none are configured.
var DefaultOrder = []string{KindIntro, KindMatching, KindMultipleChoice, KindSpeech, KindTyping}

// ErrWordNotFound is returned by [Store.Score] when no progress is stored for
// a word.
var ErrWordNotFound = errors.New("progress: word not found")

// Increments maps an exercise kind to the score a correct answer earns.
type Increments map[string]int

// DefaultIncrements returns the built-in increments.
func DefaultIncrements() Increments {
	return Increments{
		KindIntro:          0,
		KindMatching:       4,
		KindMultipleChoice: 6,
		KindSpeech:         15,
		KindTyping:         20,
		KindExplore:        0,
	}
}

// For returns the increment of kind, or [DefaultIncrement] when kind is not
// listed.
func (inc Increments) For(kind string) int {
	if v, ok := inc[kind]; ok {
		return v
	}
	return DefaultIncrement
}

// Apply returns score after one answer of kind. A correct answer adds the
// increment, capped at [MaxScore]. A wrong answer subtracts half the increment
// rounded down, floored at zero.
func (inc Increments) Apply(score int, kind string, correct bool) int {
	step := inc.For(kind)
	if correct {
		return min(score+step, MaxScore)
	}
	return max(score-step/2, 0)
}

// Apply applies one answer of kind to score using [DefaultIncrements].
func Apply(score int, kind string, correct bool) int {
	return DefaultIncrements().Apply(score, kind, correct)
}

// Entry is the stored progress of one word.
type Entry struct {
	WordID    string
	Score     int
	UpdatedAt time.Time
}

// Learned reports whether the word reached [MaxScore].
func (e Entry) Learned() bool { return e.Score >= MaxScore }

// Daily is the per-day answer tally. Day is formatted as [DayLayout].
type Daily struct {
	Day            string
	WordsAdded     int
	WordsLearned   int
	Answers        int
	CorrectAnswers int
}

// DayLayout is the layout of [Daily.Day].
const DayLayout = "2006-01-02"

// Day returns the [Daily.Day] key for t in t's location.
func Day(t time.Time) string { return t.Format(DayLayout) }

// Store persists word scores and daily statistics. Implementations must be
// safe for concurrent use.
type Store interface {
	// Score returns the stored score of wordID, or [ErrWordNotFound].
	Score(ctx context.Context, wordID string) (int, error)

	// SaveScore inserts or replaces the score of wordID.
	SaveScore(ctx context.Context, wordID string, score int) error

	// Scores returns the stored scores of ids. Words without progress are
	// absent from the result.
	Scores(ctx context.Context, ids []string) (map[string]int, error)

	// Entries returns all stored progress ordered by word ID.
	Entries(ctx context.Context) ([]Entry, error)

	// AddDaily adds the counters of d to the row of d.Day, creating it when
	// missing.
	AddDaily(ctx context.Context, d Daily) error

	// Daily returns the tally of day. A day without answers yields a zero
	// tally, not an error.
	Daily(ctx context.Context, day string) (Daily, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
