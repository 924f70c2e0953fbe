package stt

import "time"

// Transcript is one recognition result, interim or final.
type Transcript struct {
	Text       string
	Confidence float64 // 0 when the provider does not score results
	IsFinal    bool

	// Alternatives are ranked hypotheses for providers asked for more than
	// one. When set, Alternatives[0] repeats Text and Confidence.
	Alternatives []Alternative

	// Words, Timestamp and Duration are filled in by providers that report
	// timing. Timestamp is the utterance start relative to the stream start.
	Words     []WordDetail
	Timestamp time.Duration
	Duration  time.Duration
}

// Hypotheses returns the ranked hypotheses, best first. A transcript without
// alternatives yields its own text as the single hypothesis.
func (t Transcript) Hypotheses() []Alternative {
	if len(t.Alternatives) > 0 {
		return t.Alternatives
	}
	return []Alternative{{Text: t.Text, Confidence: t.Confidence}}
}

// Alternative is one scored hypothesis.
type Alternative struct {
	Text       string
	Confidence float64
}

// WordDetail is the timing of one recognized word.
type WordDetail struct {
	Word       string
	Start, End time.Duration
	Confidence float64
}
