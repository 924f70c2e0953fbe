package judge_test

import (
	"math"
	"strings"
	"testing"

	"github.com/MrWong99/lexivox/internal/judge"
)

func TestJudge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		transcript string
		target     string
		threshold  float64
		correct    bool
		similarity float64
	}{
		{"exact", "apple", "apple", 0.85, true, 1},
		{"case and punctuation", "Apple.", "apple", 0.85, true, 1},
		{"plural misses", "apples", "apple", 0.85, false, 1 - 1.0/6},
		{"lenient threshold", "apples", "apple", 0.8, true, 1 - 1.0/6},
		{"empty", "", "apple", 0.85, false, 0},
		{"strict threshold needs equality", "aple", "apple", 1, false, 0.8},
		{"zero threshold accepts anything", "dog", "apple", 0, true, 0},
		{"threshold above one needs equality", "apples", "apple", 1.5, false, 1 - 1.0/6},
		{"threshold above one still accepts equality", "Apple!", "apple", 1.5, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			j := judge.Judge(tt.transcript, tt.target, tt.threshold)
			if j.Correct != tt.correct {
				t.Errorf("Correct = %v, want %v", j.Correct, tt.correct)
			}
			if math.Abs(j.Similarity-tt.similarity) > 1e-9 {
				t.Errorf("Similarity = %v, want %v", j.Similarity, tt.similarity)
			}
		})
	}
}

func TestJudger_DefaultThreshold(t *testing.T) {
	t.Parallel()
	j := judge.New()
	if j.Threshold() != 0.85 {
		t.Errorf("Threshold() = %v, want 0.85", j.Threshold())
	}
	if got := j.Judge("apples", "apple"); got.Correct {
		t.Error("apples should not match apple at 0.85")
	}
	if got := j.Judge("hello ", "Hello!"); !got.Correct || got.Spoken != "hello" || got.Expected != "hello" {
		t.Errorf("Judge = %+v", got)
	}
}

func TestJudger_Deterministic(t *testing.T) {
	t.Parallel()
	j := judge.New(judge.WithThreshold(0.7))
	a := j.Judge("bananna", "banana")
	b := j.Judge("bananna", "banana")
	if a != b {
		t.Errorf("Judge not deterministic: %+v vs %+v", a, b)
	}
}

func TestCorrection(t *testing.T) {
	t.Parallel()

	plain := judge.New().Judge("dog", "apple")
	if got := judge.Correction(plain, "apple"); got != `Incorrect! The correct word is "apple"` {
		t.Errorf("Correction = %q", got)
	}

	hinted := judge.New(judge.WithPhoneticHints(true)).Judge("kat", "cat")
	if !hinted.SoundsLike {
		t.Fatal("expected SoundsLike for kat/cat")
	}
	if got := judge.Correction(hinted, "cat"); !strings.Contains(got, "sounded right") || !strings.Contains(got, `"cat"`) {
		t.Errorf("Correction = %q", got)
	}
}

func TestConfirmation(t *testing.T) {
	t.Parallel()
	if judge.Confirmation() != "Correct!" {
		t.Errorf("Confirmation = %q", judge.Confirmation())
	}
}
