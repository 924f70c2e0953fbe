package exercise

import (
	"fmt"
	"strings"

	"github.com/MrWong99/lexivox/internal/judge"
	"github.com/MrWong99/lexivox/pkg/types"
)

// Phase is the position of a turn in the exercise state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePrompting
	PhaseReadyToCapture
	PhaseCapturing
	PhaseJudging
	PhaseSucceeded
	PhaseFailed
	PhaseAdvancing
	PhaseAwaitingRetry
	PhaseFinished
)

var phaseNames = [...]string{
	PhaseIdle:           "idle",
	PhasePrompting:      "prompting",
	PhaseReadyToCapture: "ready",
	PhaseCapturing:      "capturing",
	PhaseJudging:        "judging",
	PhaseSucceeded:      "succeeded",
	PhaseFailed:         "failed",
	PhaseAdvancing:      "advancing",
	PhaseAwaitingRetry:  "awaiting-retry",
	PhaseFinished:       "finished",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Variant selects the behaviour of a spoken exercise.
type Variant string

const (
	// VariantSpeech reads the word's description and expects the word.
	VariantSpeech Variant = "speech"

	// VariantExplore says the word and asks the learner to repeat it.
	VariantExplore Variant = "explore"
)

// ParseVariant parses a variant name. The empty string is the speech variant.
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case "", VariantSpeech:
		return VariantSpeech, nil
	case VariantExplore:
		return VariantExplore, nil
	default:
		return "", fmt.Errorf("exercise: unknown variant %q", s)
	}
}

// TurnID identifies one turn. Every asynchronous operation carries the
// TurnID that was current when it started; completions with a different
// TurnID are discarded.
type TurnID struct {
	Seq    uint64
	WordID string
}

func (id TurnID) String() string {
	return fmt.Sprintf("%d/%s", id.Seq, id.WordID)
}

// Turn is a snapshot of the controller's state for the current word.
type Turn struct {
	ID    TurnID
	Word  types.Word
	Index int // position of Word in the word list
	Total int

	Phase        Phase
	CanCapture   bool
	IsCapturing  bool
	IsPlaying    bool
	HasSucceeded bool

	// Transcript is the live transcript of the current or last capture.
	Transcript string
	Attempts   int

	// Judgment is the verdict of the last attempt, nil before the first.
	Judgment *judge.Judgment

	// Message is transient feedback for the learner.
	Message string

	// ShowTranslation is set once the learner asked for a hint in the speech
	// variant.
	ShowTranslation bool

	// Unsupported is set when speech recognition cannot run; the learner can
	// only skip.
	Unsupported bool
}
