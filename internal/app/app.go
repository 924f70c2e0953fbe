// Package app wires the lexivox subsystems into a practice application.
//
// [New] opens the progress store, loads and selects the words, builds the
// recognition and playback services on top of the configured providers and
// prepares one spoken exercise strategy per configured kind. [App.Run] runs a
// practice session (and the metrics/health listener when configured) until
// the session ends or ctx is cancelled. [App.Shutdown] releases everything in
// reverse order.
//
// For testing, inject doubles with the functional options (WithStore,
// WithWords, ...). Anything not injected is created from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lexivox/internal/config"
	"github.com/MrWong99/lexivox/internal/exercise"
	"github.com/MrWong99/lexivox/internal/health"
	"github.com/MrWong99/lexivox/internal/judge"
	"github.com/MrWong99/lexivox/internal/observe"
	"github.com/MrWong99/lexivox/internal/prefs"
	"github.com/MrWong99/lexivox/internal/progress"
	"github.com/MrWong99/lexivox/internal/speech/backend"
	"github.com/MrWong99/lexivox/internal/speech/playback"
	"github.com/MrWong99/lexivox/internal/speech/recognition"
	"github.com/MrWong99/lexivox/internal/wordlist"
	"github.com/MrWong99/lexivox/pkg/audio"
	"github.com/MrWong99/lexivox/pkg/provider/stt"
	"github.com/MrWong99/lexivox/pkg/provider/tts"
	"github.com/MrWong99/lexivox/pkg/types"
)

// shutdownGrace bounds the metrics listener shutdown.
const shutdownGrace = 5 * time.Second

// Providers holds one interface value per provider slot. A nil STT leaves
// speech recognition unsupported; TTS and Audio are required. Populated by
// the command via the config registry.
type Providers struct {
	STT   stt.Provider
	TTS   tts.Provider
	Audio audio.Device
}

// App owns all subsystem lifetimes of a practice run.
type App struct {
	cfg       *config.Config
	providers *Providers

	store        progress.Store
	prefs        playback.PreferenceStore
	metrics      *observe.Metrics
	words        []types.Word
	levels       *slog.LevelVar
	onController func(*exercise.Controller)

	selected   []types.Word
	recognizer *recognition.Manager
	speaker    *playback.Service
	recorder   *progress.Recorder
	sessions   *SessionManager

	mu          sync.Mutex
	current     *exercise.Controller
	judger      *judge.Judger
	maxAttempts int

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithStore injects a progress store instead of opening the configured one.
func WithStore(s progress.Store) Option {
	return func(a *App) { a.store = s }
}

// WithWords injects the word list instead of loading words.files.
func WithWords(words []types.Word) Option {
	return func(a *App) { a.words = words }
}

// WithPreferences injects the voice preference store instead of the TOML
// file at preferences.path.
func WithPreferences(p playback.PreferenceStore) Option {
	return func(a *App) { a.prefs = p }
}

// WithMetrics records metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets config reloads change the level of lv.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.levels = lv }
}

// WithControllerHook registers fn to be called with every exercise controller
// before it runs. The practice UI uses it to follow the session.
func WithControllerHook(fn func(*exercise.Controller)) Option {
	return func(a *App) { a.onController = fn }
}

// New creates an App from cfg and providers. cfg must have defaults applied
// and be valid.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:         cfg,
		providers:   providers,
		maxAttempts: cfg.Exercise.MaxAttempts,
	}
	for _, o := range opts {
		o(a)
	}

	if providers.TTS == nil {
		return nil, errors.New("app: a tts provider is required")
	}
	if providers.Audio == nil {
		return nil, errors.New("app: an audio device is required")
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initWords(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init words: %w", err)
	}
	a.initSpeech()

	strategies := a.strategies()
	if len(strategies) == 0 {
		a.closeAll()
		return nil, fmt.Errorf("app: none of the exercise kinds %v can be spoken", cfg.Exercise.Kinds)
	}

	inc := progress.DefaultIncrements()
	for kind, v := range cfg.Exercise.Increments {
		inc[kind] = v
	}
	a.recorder = progress.NewRecorder(a.store, progress.WithIncrements(inc))
	a.sessions = NewSessionManager(SessionManagerConfig{
		Strategies: strategies,
		Recorders:  a.recorder.ForKind,
	})
	return a, nil
}

// OpenStore opens the progress store selected by cfg. The returned closer is
// never nil.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (progress.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Driver {
	case config.StoreSQLite:
		path := cfg.DSN
		if path == "" {
			path = filepath.Join(filepath.Dir(prefs.DefaultPath()), "progress.db")
		}
		s, err := progress.OpenSQLite(path)
		if err != nil {
			return nil, noop, err
		}
		slog.Info("progress store opened", "driver", cfg.Driver, "path", path)
		return s, s.Close, nil
	case config.StorePostgres:
		s, pool, err := progress.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		slog.Info("progress store opened", "driver", cfg.Driver)
		return s, func() error { pool.Close(); return nil }, nil
	default:
		return progress.NewMemoryStore(), noop, nil
	}
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	s, closer, err := OpenStore(ctx, a.cfg.Store)
	if err != nil {
		return err
	}
	a.store = s
	a.closers = append(a.closers, closer)
	return nil
}

func (a *App) initWords(ctx context.Context) error {
	if a.words == nil {
		words, err := wordlist.Load(a.cfg.Words.Files, a.cfg.Words.Group)
		if err != nil {
			return err
		}
		a.words = words
	} else {
		a.words = wordlist.Filter(a.words, a.cfg.Words.Group)
	}

	selected, err := progress.SelectWords(ctx, a.store, a.words, a.cfg.Words.Limit)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return ErrNoWords
	}
	a.selected = selected
	slog.Info("words selected", "available", len(a.words), "selected", len(selected), "group", a.cfg.Words.Group)
	return nil
}

func (a *App) initSpeech() {
	ac := a.cfg.Audio
	capture := audio.Format{SampleRate: ac.CaptureRate, Channels: ac.CaptureChannels}
	target := audio.Format{SampleRate: ac.RecognitionRate, Channels: 1}

	// The device is closed last.
	a.closers = append(a.closers, a.providers.Audio.Close)

	rec := backend.NewRecognizer(a.providers.STT, a.providers.Audio,
		backend.WithCaptureFormat(capture),
		backend.WithRecognitionFormat(target),
	)
	a.recognizer = recognition.NewManager(rec, recognition.WithMetrics(a.metrics))
	a.closers = append(a.closers, a.recognizer.Close)
	if !a.recognizer.Supported() {
		slog.Warn("speech recognition unavailable; exercises can only be skipped")
	}

	if a.prefs == nil {
		a.prefs = prefs.NewFile(a.cfg.Preferences.Path)
	}
	env := playback.DetectEnvironment(a.cfg.Playback.LowQualityVoices)
	env.QualityVoices = a.cfg.Playback.QualityVoices
	a.speaker = playback.New(
		backend.NewSynthesizer(a.providers.TTS, a.providers.Audio),
		playback.WithEnvironment(env),
		playback.WithPreferences(a.prefs),
		playback.WithMetrics(a.metrics),
	)
}

// strategies builds one spoken strategy per configured kind. Kinds without a
// spoken form are skipped.
func (a *App) strategies() []exercise.Strategy {
	kinds := a.cfg.Exercise.Kinds
	if len(kinds) == 0 {
		kinds = []string{a.cfg.Exercise.Variant}
	}
	a.judger = a.newJudger(a.cfg.Exercise)

	var out []exercise.Strategy
	for _, kind := range kinds {
		v, err := exercise.ParseVariant(kind)
		if err != nil {
			slog.Info("exercise kind has no spoken form, skipping", "kind", kind)
			continue
		}
		out = append(out, &exercise.SpokenStrategy{
			Variant:    v,
			Recognizer: a.recognizer,
			Speaker:    a.speaker,
			Options:    a.controllerOptions(),
			OnStart:    a.attach,
		})
	}
	return out
}

func (a *App) controllerOptions() []exercise.Option {
	ec := a.cfg.Exercise
	opts := []exercise.Option{
		exercise.WithJudger(a.judger),
		exercise.WithMaxAttempts(ec.MaxAttempts),
		exercise.WithLanguage(a.cfg.Playback.Lang),
		exercise.WithSpeechRate(ec.PromptRate),
		exercise.WithRecognitionOptions(recognition.Options{
			Language:       ec.Language,
			Continuous:     ec.CaptureMode == config.CaptureContinuous,
			InterimResults: ec.InterimResults,
		}),
		exercise.WithTargetHint(ec.TargetHint),
		exercise.WithMetrics(a.metrics),
	}
	if ec.FeedbackDelay != nil {
		opts = append(opts, exercise.WithFeedbackDelay(*ec.FeedbackDelay))
	}
	return opts
}

func (a *App) newJudger(ec config.ExerciseConfig) *judge.Judger {
	return judge.New(judge.WithThreshold(ec.Threshold), judge.WithPhoneticHints(ec.PhoneticHints))
}

// attach makes c the controller reloads apply to and brings it up to date
// with reloads that happened after the strategies were built.
func (a *App) attach(c *exercise.Controller) {
	a.mu.Lock()
	a.current = c
	c.SetJudger(a.judger)
	c.SetMaxAttempts(a.maxAttempts)
	a.mu.Unlock()

	if a.onController != nil {
		a.onController(c)
	}
}

// Words returns the words selected for practice.
func (a *App) Words() []types.Word { return a.selected }

// Speaker returns the playback service.
func (a *App) Speaker() *playback.Service { return a.speaker }

// Stats returns the statistics of the current or last session.
func (a *App) Stats() exercise.Stats { return a.sessions.Stats() }

// Run practices the selected words and blocks until the session ends or ctx
// is cancelled. When server.listen_addr is set it also serves /metrics,
// /healthz and /readyz for the duration of the session.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Server.ListenAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", addr, err)
		}
		g.Go(func() error { return a.serve(gctx, ln) })
	}

	g.Go(func() error {
		defer cancel()
		if err := a.sessions.Start(gctx, a.selected); err != nil {
			return err
		}
		return a.sessions.Wait(context.WithoutCancel(gctx))
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, exercise.ErrClosed) {
		return nil
	}
	return err
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(
		health.StoreChecker(a.store),
		health.RecognitionChecker(a.recognizer.Supported),
	).Register(mux)

	var handler http.Handler = mux
	if a.metrics != nil {
		handler = observe.Middleware(a.metrics)(mux)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("metrics listener started", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("app: metrics listener: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("metrics listener shutdown error", "err", err)
	}
	return nil
}

// Reload applies a hot-reloaded configuration. It is the callback for
// [config.Watcher].
func (a *App) Reload(diff config.ConfigDiff, cfg *config.Config) {
	if diff.LogLevelChanged && a.levels != nil {
		a.levels.Set(SlogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}

	a.mu.Lock()
	if diff.JudgingChanged {
		a.judger = a.newJudger(cfg.Exercise)
		if a.current != nil {
			a.current.SetJudger(a.judger)
		}
		slog.Info("judging changed", "threshold", diff.NewThreshold, "phonetic_hints", diff.NewPhoneticHints)
	}
	if diff.MaxAttemptsChanged {
		a.maxAttempts = diff.NewMaxAttempts
		if a.current != nil {
			a.current.SetMaxAttempts(a.maxAttempts)
		}
		slog.Info("max attempts changed", "max_attempts", diff.NewMaxAttempts)
	}
	a.mu.Unlock()

	if diff.LanguageChanged || diff.FeedbackDelayChanged {
		slog.Info("language and feedback delay changes apply to the next session")
	}
	if len(diff.RestartRequired) > 0 {
		slog.Warn("config changes need a restart", "fields", diff.RestartRequired)
	}
}

// Shutdown stops the session and tears down all subsystems in reverse-init
// order. If ctx expires first the remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		if a.sessions != nil {
			_ = a.sessions.Stop()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = err
				return
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

// SlogLevel maps a configured log level onto slog. Unknown levels are info.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
