// Package exercise runs spoken vocabulary exercises.
//
// A [Controller] walks a list of words. For every word it speaks a prompt,
// captures the learner's answer through a speech recognizer, judges it and
// speaks feedback. The controller is an actor: [Controller.Run] owns all turn
// state on one goroutine. Playback and recognition run in their own
// goroutines and post their completions, stamped with the [TurnID] and
// recognition token they started under, to an unbounded mailbox. The loop
// discards every completion whose stamp no longer matches, so nothing that
// belongs to an earlier word can change the current turn.
//
// Observers read state through [Controller.Updates] (latest snapshot wins)
// or [Controller.Snapshot].
package exercise

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/lexivox/internal/judge"
	"github.com/MrWong99/lexivox/internal/observe"
	"github.com/MrWong99/lexivox/internal/speech/playback"
	"github.com/MrWong99/lexivox/internal/speech/recognition"
	"github.com/MrWong99/lexivox/pkg/types"
)

const (
	// DefaultFeedbackDelay is the pause between judging an answer and
	// speaking the confirmation or correction.
	DefaultFeedbackDelay = 500 * time.Millisecond

	// DefaultSpeechRate is the rate every exercise utterance is spoken at.
	DefaultSpeechRate = 0.8

	// reportTimeout bounds a single answer report.
	reportTimeout = 5 * time.Second
)

// Learner-facing messages.
const (
	msgUnsupported = "Speech recognition is not available. Use skip to continue."
	msgNoSpeech    = "No speech detected. Try again."
	msgRecognition = "Speech recognition failed: "
)

var (
	// ErrClosed is returned by Run when the controller was closed before the
	// last word was finished.
	ErrClosed = errors.New("exercise: controller closed")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("exercise: controller already running")

	errSuperseded = errors.New("exercise: capture superseded")
)

// Recognizer is the speech recognition service the controller captures
// answers with. *recognition.Manager implements it.
type Recognizer interface {
	Supported() bool
	StartListening(ctx context.Context, opts recognition.Options, onResult func(recognition.Result)) (*recognition.Session, error)
	StopListening() error
	ForceStop()
}

// Speaker is the playback service prompts and feedback are spoken with.
// *playback.Service implements it.
type Speaker interface {
	Speak(ctx context.Context, text string, opts playback.Options) error
	Cancel()
}

// AnswerObserver receives every judged attempt. Errors are logged and
// counted but never change the course of the exercise.
type AnswerObserver interface {
	OnAnswer(ctx context.Context, wordID, answer string, correct bool) error
}

// AnswerFunc adapts a function to [AnswerObserver].
type AnswerFunc func(ctx context.Context, wordID, answer string, correct bool) error

// OnAnswer calls f.
func (f AnswerFunc) OnAnswer(ctx context.Context, wordID, answer string, correct bool) error {
	return f(ctx, wordID, answer, correct)
}

var (
	_ Recognizer = (*recognition.Manager)(nil)
	_ Speaker    = (*playback.Service)(nil)
)

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithVariant selects the exercise variant. Default: [VariantSpeech].
func WithVariant(v Variant) Option {
	return func(c *Controller) { c.variant = v }
}

// WithKind sets the exercise kind reported in metrics. Default: the variant
// name.
func WithKind(kind string) Option {
	return func(c *Controller) { c.kind = kind }
}

// WithJudger sets the answer judge. Default: judge.New().
func WithJudger(j *judge.Judger) Option {
	return func(c *Controller) {
		if j != nil {
			c.judger = j
		}
	}
}

// WithAnswerObserver sets the collaborator every judged attempt is reported
// to.
func WithAnswerObserver(o AnswerObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// WithFeedbackDelay sets the pause before feedback is spoken.
func WithFeedbackDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.feedbackDelay = d
		}
	}
}

// WithMaxAttempts makes the controller advance after n failed attempts. Zero
// keeps the learner on the word until they answer correctly or skip.
func WithMaxAttempts(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.maxAttempts = n
		}
	}
}

// WithLanguage sets the language prompts are spoken and answers recognized
// in. Default: playback.DefaultLanguage.
func WithLanguage(lang string) Option {
	return func(c *Controller) {
		if lang != "" {
			c.lang = lang
		}
	}
}

// WithSpeechRate sets the rate of every utterance. Default:
// [DefaultSpeechRate].
func WithSpeechRate(rate float64) Option {
	return func(c *Controller) {
		if rate > 0 {
			c.rate = rate
		}
	}
}

// WithRecognitionOptions sets the options every capture starts with. An
// empty Language is filled from [WithLanguage].
func WithRecognitionOptions(opts recognition.Options) Option {
	return func(c *Controller) { c.recOpts = opts }
}

// WithTargetHint passes the target word to the recognizer as a vocabulary
// hint.
func WithTargetHint(enabled bool) Option {
	return func(c *Controller) { c.targetHint = enabled }
}

// WithMetrics records judgments and stale discards on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithStateHook registers fn to be called on the controller goroutine with
// every state change, including transient phases that [Controller.Updates]
// may coalesce. fn must not block or call Close.
func WithStateHook(fn func(Turn)) Option {
	return func(c *Controller) { c.hook = fn }
}

// speechKind tags an utterance so its completion is handled correctly.
type speechKind int

const (
	speakPrompt speechKind = iota
	speakHint
	speakFeedback
)

func (k speechKind) String() string {
	switch k {
	case speakPrompt:
		return "prompt"
	case speakHint:
		return "hint"
	default:
		return "feedback"
	}
}

// Mailbox messages.
type (
	command int

	spoken struct {
		turn TurnID
		play uint64
		kind speechKind
		err  error
	}

	listening struct {
		turn    TurnID
		attempt uint64
		sess    *recognition.Session
		err     error
	}

	heard struct {
		turn    TurnID
		attempt uint64
		result  recognition.Result
	}

	settled struct {
		turn    TurnID
		attempt uint64
		result  recognition.Result
		err     error
	}

	setJudger      struct{ judger *judge.Judger }
	setMaxAttempts struct{ n int }
)

const (
	cmdStartCapture command = iota
	cmdStopCapture
	cmdToggleCapture
	cmdSkip
	cmdReplay
	cmdHint
)

// answer is one queued progress report.
type answer struct {
	wordID  string
	text    string
	correct bool
}

// Controller drives one spoken exercise over a list of words.
type Controller struct {
	words    []types.Word
	rec      Recognizer
	speaker  Speaker
	judger   *judge.Judger
	observer AnswerObserver
	metrics  *observe.Metrics
	hook     func(Turn)

	variant       Variant
	kind          string
	feedbackDelay time.Duration
	maxAttempts   int
	lang          string
	rate          float64
	recOpts       recognition.Options
	targetHint    bool

	inbox   *mailbox[any]
	reports *mailbox[answer]
	updates chan Turn

	snapMu sync.Mutex
	snap   Turn

	started   atomic.Bool
	closing   chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	// startMu serializes recognition starts. pending is the capture attempt
	// a start may still open, 0 when none.
	startMu sync.Mutex
	pending atomic.Uint64

	// Owned by the Run goroutine.
	runCtx    context.Context
	wg        sync.WaitGroup
	turn      Turn
	seq       uint64
	index     int
	token     uint64 // recognition session the turn listens to, 0 until started
	listen    uint64 // capture attempt in flight, 0 when none
	listenSeq uint64
	stopAsked bool // stop requested during the current capture
	playSeq   uint64
	play      uint64 // utterance the turn waits for, 0 when none
}

// New returns a Controller for words. Call Run to start it.
func New(words []types.Word, rec Recognizer, speaker Speaker, opts ...Option) *Controller {
	c := &Controller{
		words:         append([]types.Word(nil), words...),
		rec:           rec,
		speaker:       speaker,
		judger:        judge.New(),
		variant:       VariantSpeech,
		feedbackDelay: DefaultFeedbackDelay,
		lang:          playback.DefaultLanguage,
		rate:          DefaultSpeechRate,
		inbox:         newMailbox[any](),
		reports:       newMailbox[answer](),
		updates:       make(chan Turn, 1),
		closing:       make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.kind == "" {
		c.kind = string(c.variant)
	}
	return c
}

// Updates delivers the latest state after every change. Intermediate states
// may be skipped when the reader is slow. The channel is closed when Run
// returns.
func (c *Controller) Updates() <-chan Turn { return c.updates }

// Snapshot returns the current state.
func (c *Controller) Snapshot() Turn {
	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	return c.snap
}

// Variant returns the exercise variant.
func (c *Controller) Variant() Variant { return c.variant }

// StartCapture starts listening for an answer.
func (c *Controller) StartCapture() { c.inbox.post(cmdStartCapture) }

// StopCapture ends the capture in progress.
func (c *Controller) StopCapture() { c.inbox.post(cmdStopCapture) }

// ToggleCapture starts a capture, or stops the one in progress.
func (c *Controller) ToggleCapture() { c.inbox.post(cmdToggleCapture) }

// Skip moves on to the next word.
func (c *Controller) Skip() { c.inbox.post(cmdSkip) }

// Replay speaks the prompt again.
func (c *Controller) Replay() { c.inbox.post(cmdReplay) }

// Hint reveals the translation in the speech variant and speaks the
// description in the explore variant.
func (c *Controller) Hint() { c.inbox.post(cmdHint) }

// SetJudger replaces the answer judge for subsequent attempts.
func (c *Controller) SetJudger(j *judge.Judger) { c.inbox.post(setJudger{judger: j}) }

// SetMaxAttempts changes the attempt limit for subsequent failures.
func (c *Controller) SetMaxAttempts(n int) { c.inbox.post(setMaxAttempts{n: n}) }

// Close stops the controller, releasing recognition and playback, and waits
// for Run to return. It is safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() { close(c.closing) })
	if c.started.Load() {
		<-c.done
	}
	return nil
}

// Run executes the exercise. It returns nil after the last word,
// [ErrClosed] when closed early and ctx.Err() when ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.runCtx = ctx

	if c.metrics != nil {
		c.metrics.ActiveExercises.Add(ctx, 1)
		defer c.metrics.ActiveExercises.Add(context.WithoutCancel(ctx), -1)
	}

	reported := make(chan struct{})
	go c.report(context.WithoutCancel(ctx), reported)

	slog.Info("exercise: started", "variant", c.variant, "words", len(c.words))
	c.begin()
	err := c.loop(ctx)

	c.cancelListening()
	c.speaker.Cancel()
	cancel()
	c.wg.Wait()
	c.inbox.close()
	c.reports.close()
	<-reported
	close(c.updates)

	slog.Info("exercise: stopped", "variant", c.variant, "err", err)
	return err
}

func (c *Controller) begin() {
	if len(c.words) == 0 {
		c.finish()
		return
	}
	c.enterWord()
}

func (c *Controller) loop(ctx context.Context) error {
	for {
		if c.turn.Phase == PhaseFinished {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closing:
			return ErrClosed
		case <-c.inbox.ready():
			for _, msg := range c.inbox.drain() {
				c.handle(msg)
				if c.turn.Phase == PhaseFinished {
					return nil
				}
			}
		}
	}
}

func (c *Controller) handle(msg any) {
	switch m := msg.(type) {
	case command:
		c.onCommand(m)
	case spoken:
		c.onSpoken(m)
	case listening:
		c.onListening(m)
	case heard:
		c.onHeard(m)
	case settled:
		c.onSettled(m)
	case setJudger:
		if m.judger != nil {
			c.judger = m.judger
			slog.Info("exercise: judge threshold changed", "threshold", m.judger.Threshold())
		}
	case setMaxAttempts:
		if m.n >= 0 {
			c.maxAttempts = m.n
		}
	default:
		slog.Warn("exercise: unknown message", "type", msg)
	}
}

func (c *Controller) onCommand(cmd command) {
	switch cmd {
	case cmdStartCapture:
		c.startCapture()
	case cmdStopCapture:
		c.stopCapture()
	case cmdToggleCapture:
		if c.turn.Phase == PhaseCapturing {
			c.stopCapture()
		} else {
			c.startCapture()
		}
	case cmdSkip:
		c.skip()
	case cmdReplay:
		c.replay()
	case cmdHint:
		c.hint()
	}
}

// ---- Turn lifecycle ----

func (c *Controller) enterWord() {
	c.seq++
	w := c.words[c.index]
	c.play = 0
	c.turn = Turn{
		ID:          TurnID{Seq: c.seq, WordID: w.ID},
		Word:        w,
		Index:       c.index,
		Total:       len(c.words),
		Phase:       PhaseIdle,
		Unsupported: !c.rec.Supported(),
	}
	c.publish()

	slog.Debug("exercise: turn started", "turn", c.turn.ID, "word_id", w.ID)
	c.turn.Phase = PhasePrompting
	c.speakAfter(speakPrompt, c.promptText(), 0)
	c.publish()
}

func (c *Controller) promptText() string {
	if c.variant == VariantExplore {
		return c.turn.Word.Target
	}
	return c.turn.Word.Prompt
}

// advance tears the turn down and loads the next word.
func (c *Controller) advance() {
	c.cancelListening()
	c.speaker.Cancel()
	c.play = 0

	t := &c.turn
	t.Phase = PhaseAdvancing
	t.CanCapture, t.IsCapturing, t.IsPlaying = false, false, false
	c.publish()

	c.index++
	if c.index >= len(c.words) {
		c.finish()
		return
	}
	c.enterWord()
}

func (c *Controller) finish() {
	c.seq++
	c.turn = Turn{
		ID:    TurnID{Seq: c.seq},
		Index: len(c.words),
		Total: len(c.words),
		Phase: PhaseFinished,
	}
	c.publish()
	slog.Info("exercise: all words done", "words", len(c.words))
}

// waitForCapture moves the turn to the phase in which the learner may answer.
func (c *Controller) waitForCapture() {
	t := &c.turn
	if t.Attempts > 0 {
		t.Phase = PhaseAwaitingRetry
	} else {
		t.Phase = PhaseReadyToCapture
	}
	t.CanCapture = !t.Unsupported && !t.HasSucceeded
}

// ---- Commands ----

func (c *Controller) startCapture() {
	t := &c.turn
	if t.Phase != PhaseReadyToCapture && t.Phase != PhaseAwaitingRetry {
		return
	}
	if !c.rec.Supported() {
		c.unsupported()
		return
	}
	if t.IsPlaying || t.IsCapturing || t.HasSucceeded {
		return
	}

	opts := c.recOpts
	if opts.Language == "" {
		opts.Language = c.lang
	}
	if c.targetHint && t.Word.Target != "" {
		opts.Hints = append(append([]string(nil), opts.Hints...), t.Word.Target)
	}

	c.listenSeq++
	attempt := c.listenSeq
	c.listen, c.token, c.stopAsked = attempt, 0, false
	c.pending.Store(attempt)
	t.Phase = PhaseCapturing
	t.IsCapturing, t.CanCapture = true, false
	t.Transcript, t.Message = "", ""

	// Starting may dial a remote recognizer, so it runs off the loop and
	// reports back with a listening message.
	turn, ctx := t.ID, c.runCtx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		sess, err := c.open(ctx, attempt, opts, func(r recognition.Result) {
			c.inbox.post(heard{turn: turn, attempt: attempt, result: r})
		})
		if sess != nil && ctx.Err() != nil {
			sess.Cancel()
		}
		c.inbox.post(listening{turn: turn, attempt: attempt, sess: sess, err: err})
		if sess == nil {
			return
		}
		r, err := sess.Wait(ctx)
		c.inbox.post(settled{turn: turn, attempt: attempt, result: r, err: err})
	}()
	c.publish()
}

// open starts recognition for attempt unless it was stopped or replaced
// before its turn came.
func (c *Controller) open(ctx context.Context, attempt uint64, opts recognition.Options, onResult func(recognition.Result)) (*recognition.Session, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.pending.Load() != attempt {
		return nil, errSuperseded
	}
	return c.rec.StartListening(ctx, opts, onResult)
}

// cancelListening abandons the capture attempt, started or not.
func (c *Controller) cancelListening() {
	c.pending.Store(0)
	c.rec.ForceStop()
	c.listen, c.token, c.stopAsked = 0, 0, false
	c.turn.IsCapturing = false
}

func (c *Controller) unsupported() {
	t := &c.turn
	t.Unsupported, t.CanCapture = true, false
	t.Message = msgUnsupported
	c.publish()
}

func (c *Controller) stopCapture() {
	t := &c.turn
	if t.Phase != PhaseCapturing {
		return
	}

	switch {
	case c.variant == VariantSpeech && t.Transcript == "":
		c.cancelListening()
		c.waitForCapture()
		c.publish()
	case c.variant == VariantSpeech && !c.stopAsked:
		// The recognizer finalizes what it heard on its own. Asking again
		// stops it.
		c.stopAsked = true
	case c.token == 0 && t.Transcript == "":
		// Still starting; stop once the session is up.
		c.stopAsked = true
	default:
		c.finishListening()
	}
}

// finishListening asks the recognizer to finalize the capture.
func (c *Controller) finishListening() {
	t := &c.turn
	if err := c.rec.StopListening(); err != nil {
		slog.Warn("exercise: stopping recognition failed", "turn", t.ID, "err", err)
		c.cancelListening()
		t.Message = msgRecognition + reason(err)
		t.Phase = PhaseAwaitingRetry
		t.CanCapture = !t.Unsupported
		c.publish()
	}
}

func (c *Controller) skip() {
	switch c.turn.Phase {
	case PhaseCapturing, PhaseFinished:
		return
	}
	slog.Info("exercise: word skipped", "turn", c.turn.ID)
	c.advance()
}

func (c *Controller) replay() {
	switch c.turn.Phase {
	case PhasePrompting, PhaseReadyToCapture, PhaseAwaitingRetry:
	default:
		return
	}
	c.speakAfter(speakPrompt, c.promptText(), 0)
	c.publish()
}

func (c *Controller) hint() {
	t := &c.turn
	if c.variant == VariantSpeech {
		if t.Phase == PhaseFinished || t.ShowTranslation {
			return
		}
		t.ShowTranslation = true
		c.publish()
		return
	}
	switch t.Phase {
	case PhaseReadyToCapture, PhaseAwaitingRetry:
	default:
		return
	}
	if t.IsPlaying || t.IsCapturing {
		return
	}
	c.speakAfter(speakHint, t.Word.Prompt, 0)
	c.publish()
}

// ---- Completions ----

func (c *Controller) onSpoken(m spoken) {
	if m.turn != c.turn.ID || m.play != c.play {
		c.discard(m.kind.String(), m.turn)
		return
	}
	c.play = 0
	t := &c.turn
	t.IsPlaying = false

	if m.err != nil && !errors.Is(m.err, playback.ErrInterrupted) && !errors.Is(m.err, context.Canceled) {
		// The learner is never blocked by a synthesis outage.
		slog.Warn("exercise: playback failed, continuing", "turn", m.turn, "kind", m.kind, "err", m.err)
	}

	switch m.kind {
	case speakPrompt, speakHint:
		if t.Phase == PhasePrompting {
			c.waitForCapture()
		}
	case speakFeedback:
		switch t.Phase {
		case PhaseSucceeded:
			c.advance()
			return
		case PhaseFailed:
			if c.maxAttempts > 0 && t.Attempts >= c.maxAttempts {
				slog.Info("exercise: attempts exhausted", "turn", t.ID, "attempts", t.Attempts)
				c.advance()
				return
			}
			c.waitForCapture()
		}
	}
	c.publish()
}

func (c *Controller) onListening(m listening) {
	t := &c.turn
	if m.turn != t.ID || m.attempt != c.listen || t.Phase != PhaseCapturing {
		if m.sess != nil {
			m.sess.Cancel()
		}
		if !errors.Is(m.err, errSuperseded) {
			c.discard("recognition", m.turn)
		}
		return
	}
	if m.err != nil {
		c.listen, c.stopAsked = 0, false
		t.IsCapturing = false
		c.waitForCapture()
		if errors.Is(m.err, recognition.ErrRecognitionUnsupported) {
			c.unsupported()
			return
		}
		slog.Warn("exercise: recognition failed to start", "turn", t.ID, "err", m.err)
		t.Message = msgRecognition + reason(m.err)
		t.Phase = PhaseAwaitingRetry
		t.CanCapture = true
		c.publish()
		return
	}
	c.token = m.sess.Token()
	slog.Debug("exercise: listening", "turn", t.ID, "token", c.token)
	if c.stopAsked && c.variant == VariantExplore {
		c.finishListening()
	}
}

func (c *Controller) onHeard(m heard) {
	if m.turn != c.turn.ID || m.attempt != c.listen || c.turn.Phase != PhaseCapturing {
		c.discard("recognition", m.turn)
		return
	}
	if m.result.Transcript == c.turn.Transcript {
		return
	}
	c.turn.Transcript = m.result.Transcript
	c.publish()
}

func (c *Controller) onSettled(m settled) {
	if m.turn != c.turn.ID || m.attempt != c.listen || c.turn.Phase != PhaseCapturing {
		c.discard("recognition", m.turn)
		return
	}
	c.pending.Store(0)
	c.listen, c.token, c.stopAsked = 0, 0, false
	t := &c.turn
	t.IsCapturing = false

	switch {
	case errors.Is(m.err, recognition.ErrStaleResult):
		c.waitForCapture()
	case m.err != nil:
		slog.Warn("exercise: recognition failed", "turn", t.ID, "err", m.err)
		t.Message = msgRecognition + reason(m.err)
		t.Phase = PhaseAwaitingRetry
		t.CanCapture = !t.Unsupported
	case strings.TrimSpace(m.result.Transcript) == "":
		t.Transcript = ""
		t.Message = msgNoSpeech
		t.Phase = PhaseAwaitingRetry
		t.CanCapture = !t.Unsupported
	default:
		c.judge(m.result.Transcript)
		return
	}
	c.publish()
}

func (c *Controller) judge(transcript string) {
	t := &c.turn
	t.Phase = PhaseJudging
	t.Transcript = transcript
	c.publish()

	j := c.judger.Judge(transcript, t.Word.Target)
	t.Judgment = &j
	t.Attempts++
	if c.metrics != nil {
		c.metrics.RecordJudgment(c.runCtx, c.kind, j.Correct, j.Similarity)
	}
	if c.observer != nil {
		c.reports.post(answer{wordID: t.Word.ID, text: transcript, correct: j.Correct})
	}
	slog.Info("exercise: answer judged",
		"turn", t.ID,
		"word_id", t.Word.ID,
		"correct", j.Correct,
		"similarity", j.Similarity,
		"attempt", t.Attempts,
	)

	if j.Correct {
		t.Phase = PhaseSucceeded
		t.HasSucceeded = true
		t.Message = judge.Confirmation()
		confirm := ""
		if c.variant == VariantSpeech {
			confirm = t.Word.Target
		}
		c.speakAfter(speakFeedback, confirm, c.feedbackDelay)
	} else {
		t.Phase = PhaseFailed
		t.Message = judge.Correction(j, t.Word.Target)
		c.speakAfter(speakFeedback, t.Word.Target, c.feedbackDelay)
	}
	t.CanCapture = false
	c.publish()
}

// ---- Helpers ----

// speakAfter speaks text after delay on its own goroutine and posts the
// completion. An empty text completes without speaking.
func (c *Controller) speakAfter(kind speechKind, text string, delay time.Duration) {
	c.playSeq++
	play := c.playSeq
	c.play = play
	c.turn.IsPlaying = text != ""

	turn := c.turn.ID
	ctx := c.runCtx
	opts := playback.Options{Lang: c.lang, Rate: c.rate}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				c.inbox.post(spoken{turn: turn, play: play, kind: kind, err: ctx.Err()})
				return
			}
		}
		var err error
		if text != "" {
			err = c.speaker.Speak(ctx, text, opts)
		}
		c.inbox.post(spoken{turn: turn, play: play, kind: kind, err: err})
	}()
}

func (c *Controller) publish() {
	snap := c.turn
	c.snapMu.Lock()
	c.snap = snap
	c.snapMu.Unlock()

	// Only this goroutine sends, so after the drain the send cannot block.
	select {
	case <-c.updates:
	default:
	}
	c.updates <- snap

	if c.hook != nil {
		c.hook(snap)
	}
}

func (c *Controller) discard(source string, stamp TurnID) {
	slog.Debug("exercise: discarding stale completion", "source", source, "turn", stamp, "current", c.turn.ID)
	if c.metrics != nil {
		c.metrics.RecordStaleDiscard(c.runCtx, source)
	}
}

// report delivers queued answers to the observer until the queue is closed.
func (c *Controller) report(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	deliver := func() {
		for _, a := range c.reports.drain() {
			rctx, cancel := context.WithTimeout(ctx, reportTimeout)
			err := c.observer.OnAnswer(rctx, a.wordID, a.text, a.correct)
			cancel()
			if err != nil {
				slog.Warn("exercise: recording answer failed", "word_id", a.wordID, "correct", a.correct, "err", err)
				if c.metrics != nil {
					c.metrics.ProgressReportFailures.Add(ctx, 1)
				}
			}
		}
	}
	for {
		<-c.reports.ready()
		deliver()
		if c.reports.isClosed() {
			deliver()
			return
		}
	}
}

// reason extracts the learner-facing reason of a recognition error.
func reason(err error) string {
	var rerr *recognition.RecognitionError
	if errors.As(err, &rerr) {
		return rerr.Reason
	}
	return err.Error()
}
