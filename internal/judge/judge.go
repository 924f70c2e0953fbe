// Package judge decides whether a spoken transcript answers a word correctly
// and renders the feedback shown to the learner.
package judge

import (
	"fmt"

	"github.com/MrWong99/lexivox/internal/textmatch"
)

// Judgment is the verdict for one transcript. It is a value and never
// changes after creation.
type Judgment struct {
	Similarity float64
	Correct    bool

	// SoundsLike is set when the answer missed but matched phonetically.
	SoundsLike bool

	Spoken   string // normalized transcript
	Expected string // normalized target
}

// Judge compares transcript with target at threshold. It is a pure function.
// Any threshold is taken as given: 0 or less accepts every answer and more
// than 1 accepts only an exact normalized match.
func Judge(transcript, target string, threshold float64) Judgment {
	j := fromScore(textmatch.New().Score(transcript, target))
	j.Correct = textmatch.IsMatch(transcript, target, threshold)
	return j
}

func fromScore(s textmatch.Score) Judgment {
	return Judgment{
		Similarity: s.Similarity,
		Correct:    s.Match,
		SoundsLike: s.Phonetic,
		Spoken:     s.Spoken,
		Expected:   s.Expected,
	}
}

// Option is a functional option for configuring a [Judge].
type Option func(*config)

type config struct {
	threshold float64
	phonetic  bool
}

// WithThreshold sets the similarity an answer needs. Default: 0.85.
func WithThreshold(threshold float64) Option {
	return func(c *config) { c.threshold = threshold }
}

// WithPhoneticHints enables "sounds like" corrections.
func WithPhoneticHints(enabled bool) Option {
	return func(c *config) { c.phonetic = enabled }
}

// Judger judges transcripts with a fixed threshold. Safe for concurrent use.
type Judger struct {
	scorer *textmatch.Scorer
}

// New returns a Judger.
func New(opts ...Option) *Judger {
	c := config{threshold: textmatch.DefaultThreshold}
	for _, o := range opts {
		o(&c)
	}
	return &Judger{scorer: textmatch.New(
		textmatch.WithThreshold(c.threshold),
		textmatch.WithPhoneticFallback(c.phonetic),
	)}
}

// Threshold returns the similarity the Judger requires.
func (j *Judger) Threshold() float64 { return j.scorer.Threshold() }

// Judge compares transcript against target.
func (j *Judger) Judge(transcript, target string) Judgment {
	return fromScore(j.scorer.Score(transcript, target))
}

// Confirmation is the message shown after a correct answer.
func Confirmation() string { return "Correct!" }

// Correction is the message shown after a wrong answer.
func Correction(j Judgment, target string) string {
	if j.SoundsLike {
		return fmt.Sprintf("Almost! It sounded right, but the correct word is %q", target)
	}
	return fmt.Sprintf("Incorrect! The correct word is %q", target)
}
