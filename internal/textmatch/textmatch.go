// Package textmatch turns raw recognizer output into a canonical form and
// scores how close a spoken answer is to the expected word.
//
// Similarity is edit-distance based: the unit-cost Levenshtein distance
// between the normalized strings, divided by the longer rune length and
// subtracted from one. Two empty strings are identical.
//
// A [Scorer] adds an optional phonetic hint on top of the edit score. Double
// Metaphone codes are compared token by token; when they agree the answer
// "sounds right" even though it is spelled too differently to pass. The hint
// never turns a miss into a match.
package textmatch

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the similarity an answer needs to count as correct.
const DefaultThreshold = 0.85

// stripped are the punctuation runes Normalize removes.
const stripped = `.,;:!?'"()[]{}-_`

// Normalize lowercases text, strips punctuation, collapses whitespace runs to
// a single space and trims the result.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range strings.ToLower(text) {
		if strings.ContainsRune(stripped, r) {
			continue
		}
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Similarity returns a score in [0, 1] for how close a and b are after
// normalization.
func Similarity(a, b string) float64 {
	return similarity(Normalize(a), Normalize(b))
}

func similarity(na, nb string) float64 {
	if na == nb {
		return 1
	}
	longest := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	if longest == 0 {
		return 1
	}
	d := matchr.Levenshtein(na, nb)
	return 1 - float64(d)/float64(longest)
}

// IsMatch reports whether spoken matches expected. Normalized equality always
// matches; otherwise a threshold below 1 admits near misses.
func IsMatch(spoken, expected string, threshold float64) bool {
	ns, ne := Normalize(spoken), Normalize(expected)
	if ns == ne {
		return true
	}
	return threshold < 1 && similarity(ns, ne) >= threshold
}

// Score is the outcome of comparing a spoken answer with the expected word.
type Score struct {
	Spoken     string // normalized answer
	Expected   string // normalized target
	Similarity float64
	Match      bool

	// Phonetic is set when the answer missed but sounds like the target.
	Phonetic bool
}

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithThreshold sets the similarity required for a match. Values outside
// (0, 1] are ignored. Default: 0.85.
func WithThreshold(threshold float64) Option {
	return func(s *Scorer) {
		if threshold > 0 && threshold <= 1 {
			s.threshold = threshold
		}
	}
}

// WithPhoneticFallback enables the Double Metaphone hint on misses.
func WithPhoneticFallback(enabled bool) Option {
	return func(s *Scorer) { s.phonetic = enabled }
}

// Scorer compares answers against expected words. It is read-only after
// construction and safe for concurrent use.
type Scorer struct {
	threshold float64
	phonetic  bool
}

// New returns a Scorer configured with opts.
func New(opts ...Option) *Scorer {
	s := &Scorer{threshold: DefaultThreshold}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Threshold returns the configured match threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Score compares spoken against expected.
func (s *Scorer) Score(spoken, expected string) Score {
	ns, ne := Normalize(spoken), Normalize(expected)
	sc := Score{
		Spoken:     ns,
		Expected:   ne,
		Similarity: similarity(ns, ne),
	}
	sc.Match = ns == ne || (s.threshold < 1 && sc.Similarity >= s.threshold)
	if !sc.Match && s.phonetic && ns != "" {
		sc.Phonetic = soundsAlike(ns, ne)
	}
	return sc
}

// soundsAlike reports whether a and b have the same number of tokens and
// every token pair shares a Double Metaphone code.
func soundsAlike(a, b string) bool {
	at, bt := strings.Fields(a), strings.Fields(b)
	if len(at) == 0 || len(at) != len(bt) {
		return false
	}
	for i := range at {
		if !codesOverlap(at[i], bt[i]) {
			return false
		}
	}
	return true
}

func codesOverlap(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}
