package observe

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationHeader carries the request's trace ID back to the caller.
const CorrelationHeader = "X-Correlation-ID"

// unmatchedRoute labels requests no mux pattern claimed, so scanners hitting
// random paths cannot blow up metric cardinality.
const unmatchedRoute = "unmatched"

// Middleware instruments the metrics and health listener.
//
// Requests run in a server span that continues an incoming traceparent. The
// trace ID is echoed in [CorrelationHeader], and the latency lands in
// [Metrics.HTTPRequestDuration] keyed by the matched mux pattern and status.
// m may be nil; requests are then traced but not measured.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if id := CorrelationID(ctx); id != "" {
				w.Header().Set(CorrelationHeader, id)
			}

			sw := &statusWriter{ResponseWriter: w}
			r = r.WithContext(ctx)
			next.ServeHTTP(sw, r)

			// ServeMux fills in Pattern on the request it routed.
			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			status := sw.status()
			span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			elapsed := time.Since(start)
			if m != nil {
				m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
					attribute.String("route", route),
					attribute.Int("status", status),
				))
			}
			Logger(ctx).LogAttrs(ctx, slog.LevelDebug, "http request",
				slog.String("route", route),
				slog.Int("status", status),
				slog.Duration("elapsed", elapsed),
			)
		})
	}
}

// statusWriter remembers the first status code sent downstream.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets [http.ResponseController] reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}
	return w.code
}
