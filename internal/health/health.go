// Package health answers the liveness and readiness probes on the metrics
// listener.
//
// GET /healthz reports "alive" for as long as the process serves requests.
// GET /readyz runs every [Checker] and reports "ready", or "unavailable" with
// status 503 when any of them fails.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

const (
	StatusAlive       = "alive"
	StatusReady       = "ready"
	StatusUnavailable = "unavailable"
)

// ErrRecognitionUnavailable is reported by [RecognitionChecker] when no
// recognizer can capture speech.
var ErrRecognitionUnavailable = errors.New("speech recognition unavailable")

// Checker is a named readiness probe. Check returns nil when the dependency
// is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is implemented by the progress stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker probes the progress store.
func StoreChecker(p Pinger) Checker {
	return Checker{Name: "store", Check: p.Ping}
}

// RecognitionChecker fails while supported reports false.
func RecognitionChecker(supported func() bool) Checker {
	return Checker{Name: "recognition", Check: func(context.Context) error {
		if supported() {
			return nil
		}
		return ErrRecognitionUnavailable
	}}
}

// Probe is the outcome of one [Checker].
type Probe struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the body of both endpoints.
type Report struct {
	Status string  `json:"status"`
	Probes []Probe `json:"probes,omitempty"`
}

// Ready reports whether every probe passed.
func (r Report) Ready() bool {
	return !slices.ContainsFunc(r.Probes, func(p Probe) bool { return !p.OK })
}

// Handler serves /healthz and /readyz for a fixed set of checkers.
type Handler struct {
	checkers []Checker
}

// New returns a Handler for checkers.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: slices.Clone(checkers)}
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Report{Status: StatusAlive})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		rep := h.Check(r.Context())
		code := http.StatusOK
		if rep.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, rep)
	})
}

// Check runs all checkers concurrently, each under [checkTimeout], and keeps
// their registration order in the report.
func (h *Handler) Check(ctx context.Context) Report {
	probes := make([]Probe, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			probes[i] = run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusReady, Probes: probes}
	if !rep.Ready() {
		rep.Status = StatusUnavailable
	}
	return rep
}

func run(ctx context.Context, c Checker) Probe {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	start := time.Now()
	err := c.Check(ctx)
	p := Probe{Name: c.Name, OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
