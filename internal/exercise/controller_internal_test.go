package exercise

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/lexivox/internal/speech/playback"
	"github.com/MrWong99/lexivox/internal/speech/recognition"
	recmock "github.com/MrWong99/lexivox/internal/speech/recognition/mock"
	"github.com/MrWong99/lexivox/pkg/types"
)

// instantSpeaker completes every utterance immediately.
type instantSpeaker struct {
	mu    sync.Mutex
	texts []string
}

func (s *instantSpeaker) Speak(_ context.Context, text string, _ playback.Options) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return nil
}

func (s *instantSpeaker) Cancel() {}

// newStepped returns a controller whose loop the test drives by hand with
// step.
func newStepped(t *testing.T, capability *recmock.Capability, words ...types.Word) *Controller {
	t.Helper()
	c := New(words, recognition.NewManager(capability), &instantSpeaker{}, WithFeedbackDelay(0))
	ctx, cancel := context.WithCancel(context.Background())
	c.runCtx = ctx
	t.Cleanup(func() {
		c.rec.ForceStop()
		cancel()
		c.wg.Wait()
	})
	c.begin()
	return c
}

// step waits for at least one message and handles everything queued.
func step(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		msgs := c.inbox.drain()
		for _, m := range msgs {
			c.handle(m)
		}
		if len(msgs) > 0 {
			return
		}
		select {
		case <-c.inbox.ready():
		case <-deadline:
			t.Fatal("no message arrived")
		}
	}
}

// stepUntil steps until cond holds.
func stepUntil(t *testing.T, c *Controller, cond func() bool) {
	t.Helper()
	for !cond() {
		step(t, c)
	}
}

func TestStaleCompletionsAfterWordChange(t *testing.T) {
	t.Parallel()
	a := types.Word{ID: "a", Target: "apple", Prompt: "a round fruit"}
	b := types.Word{ID: "b", Target: "banana", Prompt: "a long yellow fruit"}
	c := newStepped(t, recmock.NewCapability(), a, b)

	step(t, c) // prompt for a finished
	if c.turn.Phase != PhaseReadyToCapture {
		t.Fatalf("phase = %v, want ready", c.turn.Phase)
	}
	stampA, playA := c.turn.ID, c.playSeq

	// A completion for a is queued in the same tick the word changes.
	c.inbox.post(heard{turn: stampA, attempt: 1, result: recognition.Result{Token: 1, Transcript: "apple", IsFinal: true}})
	c.skip()
	if c.turn.Word.ID != "b" {
		t.Fatalf("word = %q, want b", c.turn.Word.ID)
	}

	// The stale heard for a, then the prompt for b.
	stepUntil(t, c, func() bool { return c.turn.Phase != PhasePrompting })
	if c.turn.Phase != PhaseReadyToCapture || c.turn.Transcript != "" {
		t.Fatalf("turn after stale result = %+v", c.turn)
	}

	before := c.turn
	for _, m := range []any{
		spoken{turn: stampA, play: playA, kind: speakPrompt},
		spoken{turn: stampA, play: playA, kind: speakFeedback},
		listening{turn: stampA, attempt: c.listen},
		heard{turn: stampA, attempt: c.listen, result: recognition.Result{Transcript: "apple"}},
		settled{turn: stampA, attempt: c.listen, result: recognition.Result{Transcript: "apple", IsFinal: true}},
	} {
		c.handle(m)
	}
	if c.turn != before {
		t.Errorf("stale completions changed the turn:\n got %+v\nwant %+v", c.turn, before)
	}
}

func TestStaleResultsOfSupersededSession(t *testing.T) {
	t.Parallel()
	capability := recmock.NewCapability()
	capability.IgnoreAbort = true
	c := newStepped(t, capability, types.Word{ID: "a", Target: "apple"})
	step(t, c)

	c.startCapture()
	st1 := <-capability.Started()
	stepUntil(t, c, func() bool { return c.token != 0 })
	first, firstAttempt := c.token, c.listen

	// Stop without transcript, then capture again.
	c.stopCapture()
	c.startCapture()
	st2 := <-capability.Started()
	stepUntil(t, c, func() bool { return c.token != 0 })
	if second := c.token; first == second {
		t.Fatalf("tokens = %d, %d", first, second)
	}

	// The torn-down recognizer keeps firing; the manager drops it.
	st1.Partial("stale")
	st1.Final("stale")
	time.Sleep(20 * time.Millisecond)
	for _, m := range c.inbox.drain() {
		c.handle(m)
	}

	// Results of the old attempt that did get queued are dropped.
	c.handle(heard{turn: c.turn.ID, attempt: firstAttempt, result: recognition.Result{Token: first, Transcript: "stale"}})
	c.handle(settled{turn: c.turn.ID, attempt: firstAttempt, result: recognition.Result{Transcript: "stale", IsFinal: true}})
	if c.turn.Transcript != "" || c.turn.Phase != PhaseCapturing {
		t.Fatalf("stale session changed the turn: %+v", c.turn)
	}

	st2.Partial("app")
	stepUntil(t, c, func() bool { return c.turn.Transcript != "" })
	if c.turn.Transcript != "app" {
		t.Errorf("transcript = %q, want app", c.turn.Transcript)
	}
}

func TestStopWhileStarting(t *testing.T) {
	t.Parallel()
	capability := recmock.NewCapability()
	c := newStepped(t, capability, types.Word{ID: "a", Target: "apple"})
	step(t, c)

	// The stop is handled before the start reports back.
	c.startCapture()
	c.stopCapture()
	if c.turn.Phase != PhaseReadyToCapture || c.turn.IsCapturing || !c.turn.CanCapture {
		t.Fatalf("turn after stop = %+v", c.turn)
	}

	step(t, c) // the start reports back
	if m := c.rec.(*recognition.Manager); m.CurrentToken() != 0 {
		t.Errorf("abandoned session %d still running", m.CurrentToken())
	}
	if c.turn.Phase != PhaseReadyToCapture || c.token != 0 {
		t.Errorf("late start changed the turn: %+v", c.turn)
	}
}

func TestHintWaitsForPrompt(t *testing.T) {
	t.Parallel()
	c := newStepped(t, recmock.NewCapability(), types.Word{ID: "a", Target: "apple", Prompt: "a round fruit"})
	c.variant = VariantExplore
	if c.turn.Phase != PhasePrompting {
		t.Fatalf("phase = %v, want prompting", c.turn.Phase)
	}
	prompt := c.play

	c.hint()
	if c.play != prompt {
		t.Fatal("hint replaced the prompt")
	}

	c.handle(spoken{turn: c.turn.ID, play: prompt, kind: speakPrompt})
	if c.turn.Phase != PhaseReadyToCapture || !c.turn.CanCapture {
		t.Fatalf("turn after prompt = %+v", c.turn)
	}

	c.hint()
	if !c.turn.IsPlaying || c.play == prompt {
		t.Fatalf("hint not spoken once ready: %+v", c.turn)
	}

	// Whatever utterance ends the prompting phase opens capture.
	hint := c.play
	c.turn.Phase = PhasePrompting
	c.handle(spoken{turn: c.turn.ID, play: hint, kind: speakHint})
	if c.turn.Phase != PhaseReadyToCapture {
		t.Errorf("phase after hint = %v, want ready", c.turn.Phase)
	}
}

func TestSupersededUtteranceIgnored(t *testing.T) {
	t.Parallel()
	c := newStepped(t, recmock.NewCapability(), types.Word{ID: "a", Target: "apple", Prompt: "a round fruit"})
	step(t, c)

	c.replay()
	older := c.play
	c.replay()
	if !c.turn.IsPlaying {
		t.Fatal("IsPlaying = false during replay")
	}

	c.handle(spoken{turn: c.turn.ID, play: older, kind: speakPrompt})
	if !c.turn.IsPlaying {
		t.Error("superseded utterance cleared IsPlaying")
	}
}

func TestMailbox(t *testing.T) {
	t.Parallel()
	m := newMailbox[int]()
	for i := range 100 {
		if !m.post(i) {
			t.Fatalf("post %d rejected", i)
		}
	}
	select {
	case <-m.ready():
	default:
		t.Fatal("ready not signalled")
	}
	got := m.drain()
	if len(got) != 100 || got[0] != 0 || got[99] != 99 {
		t.Errorf("drain = %d items, first %d", len(got), got[0])
	}
	if len(m.drain()) != 0 {
		t.Error("second drain not empty")
	}

	m.close()
	if m.post(1) {
		t.Error("post after close accepted")
	}
	if !m.isClosed() {
		t.Error("isClosed = false")
	}
}
