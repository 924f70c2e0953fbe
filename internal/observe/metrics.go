// Package observe holds the lexivox telemetry plumbing: OpenTelemetry
// instruments exported to Prometheus, tracing helpers, a span-aware slog
// handler and the middleware for the metrics and health listener.
//
// Components take a *Metrics and treat nil as "not measured". Tests build
// their own with [NewMetrics] over a manual reader.
package observe

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every lexivox instrument.
const meterName = "github.com/MrWong99/lexivox"

// Metrics holds the instruments. All fields are safe for concurrent use.
type Metrics struct {
	// RecognitionDuration runs from capture start until the recognition
	// session settles.
	RecognitionDuration metric.Float64Histogram

	// SynthesisDuration is the time one utterance takes to play.
	SynthesisDuration metric.Float64Histogram

	// Judgments counts judged answers by "kind" and "correct".
	Judgments metric.Int64Counter

	// Similarity is the similarity of every judged answer, by "kind".
	Similarity metric.Float64Histogram

	// StaleDiscards counts completions dropped because their turn or session
	// was over, by "source" (prompt, recognition, feedback, ...).
	StaleDiscards metric.Int64Counter

	// ProviderRequests counts provider calls by "provider", "kind" and
	// "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts failed provider calls by "provider" and "kind".
	ProviderErrors metric.Int64Counter

	RecognitionErrors metric.Int64Counter

	// SynthesisErrors excludes interrupted utterances.
	SynthesisErrors metric.Int64Counter

	ProgressReportFailures metric.Int64Counter

	// ActiveRecognitions is 0 or 1 per recognition manager.
	ActiveRecognitions metric.Int64UpDownCounter

	ActiveExercises metric.Int64UpDownCounter

	// HTTPRequestDuration covers the metrics and health listener, by "route"
	// and "status".
	HTTPRequestDuration metric.Float64Histogram
}

var (
	// Speech round trips run from tens of milliseconds to a whole sentence.
	latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}

	// Finer around the default match threshold.
	similarityBuckets = []float64{0.2, 0.4, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1}
)

// builder creates instruments on one meter and keeps every creation error.
type builder struct {
	meter metric.Meter
	errs  []error
}

func (b *builder) seconds(name, desc string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	b.errs = append(b.errs, err)
	return h
}

func (b *builder) ratio(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithExplicitBucketBoundaries(similarityBuckets...),
	)
	b.errs = append(b.errs, err)
	return h
}

func (b *builder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.errs = append(b.errs, err)
	return c
}

func (b *builder) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.errs = append(b.errs, err)
	return g
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &builder{meter: mp.Meter(meterName)}
	m := &Metrics{
		RecognitionDuration: b.seconds("lexivox.recognition.duration",
			"Time from capture start until the recognition session settles.", latencyBuckets...),
		SynthesisDuration: b.seconds("lexivox.synthesis.duration",
			"Time taken to speak one utterance.", latencyBuckets...),
		HTTPRequestDuration: b.seconds("lexivox.http.request.duration",
			"Latency of metrics and health requests by route and status."),

		Similarity: b.ratio("lexivox.judge.similarity", "Similarity of judged answers to their target word."),

		Judgments:              b.counter("lexivox.judge.judgments", "Judged answers by exercise kind and correctness."),
		StaleDiscards:          b.counter("lexivox.stale_discards", "Completions dropped because their turn was no longer current."),
		ProviderRequests:       b.counter("lexivox.provider.requests", "Provider requests by provider, kind and status."),
		ProviderErrors:         b.counter("lexivox.provider.errors", "Provider errors by provider and kind."),
		RecognitionErrors:      b.counter("lexivox.recognition.errors", "Recognition sessions that failed."),
		SynthesisErrors:        b.counter("lexivox.synthesis.errors", "Utterances that failed to play."),
		ProgressReportFailures: b.counter("lexivox.progress.report_failures", "Answers that could not be recorded."),

		ActiveRecognitions: b.gauge("lexivox.active_recognitions", "Open recognition sessions."),
		ActiveExercises:    b.gauge("lexivox.active_exercises", "Running exercise controllers."),
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", err)
	}
	return m, nil
}

// RecordJudgment counts a judged answer and records its similarity.
func (m *Metrics) RecordJudgment(ctx context.Context, kind string, correct bool, similarity float64) {
	k := attribute.String("kind", kind)
	m.Judgments.Add(ctx, 1, metric.WithAttributes(k, attribute.String("correct", strconv.FormatBool(correct))))
	m.Similarity.Record(ctx, similarity, metric.WithAttributes(k))
}

// RecordStaleDiscard counts one dropped completion from source.
func (m *Metrics) RecordStaleDiscard(ctx context.Context, source string) {
	m.StaleDiscards.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

// RecordProviderRequest counts one provider call ending in status
// ("ok", "error" or "canceled").
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}
