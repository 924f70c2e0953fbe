package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// point is the value of one data point, a sum for counters and a sample count
// for histograms.
func point(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not recorded", name)
	}
	want := attribute.NewSet(attrs...)
	matches := func(set attribute.Set) bool {
		for _, kv := range want.ToSlice() {
			if v, ok := set.Value(kv.Key); !ok || v.Emit() != kv.Value.Emit() {
				return false
			}
		}
		return true
	}

	switch data := met.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			if matches(dp.Attributes) {
				return dp.Value
			}
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			if matches(dp.Attributes) {
				return int64(dp.Count)
			}
		}
	default:
		t.Fatalf("metric %q has unexpected data %T", name, met.Data)
	}
	t.Fatalf("metric %q has no point matching %v", name, attrs)
	return 0
}

func TestMetrics_Recorders(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordJudgment(ctx, "speech", true, 1)
	m.RecordJudgment(ctx, "speech", true, 0.9)
	m.RecordJudgment(ctx, "speech", false, 0.4)
	m.RecordJudgment(ctx, "explore", true, 0.95)
	m.RecordStaleDiscard(ctx, "recognition")
	m.RecordStaleDiscard(ctx, "recognition")
	m.RecordStaleDiscard(ctx, "prompt")
	m.RecordProviderRequest(ctx, "deepgram", "stt", "ok")
	m.RecordProviderRequest(ctx, "deepgram", "stt", "ok")
	m.RecordProviderRequest(ctx, "deepgram", "stt", "error")
	m.RecordProviderError(ctx, "elevenlabs", "tts")

	rm := collect(t, reader)
	tests := []struct {
		metric string
		attrs  []attribute.KeyValue
		want   int64
	}{
		{"lexivox.judge.judgments", []attribute.KeyValue{attribute.String("kind", "speech"), attribute.String("correct", "true")}, 2},
		{"lexivox.judge.judgments", []attribute.KeyValue{attribute.String("kind", "speech"), attribute.String("correct", "false")}, 1},
		{"lexivox.judge.judgments", []attribute.KeyValue{attribute.String("kind", "explore")}, 1},
		{"lexivox.judge.similarity", []attribute.KeyValue{attribute.String("kind", "speech")}, 3},
		{"lexivox.stale_discards", []attribute.KeyValue{attribute.String("source", "recognition")}, 2},
		{"lexivox.stale_discards", []attribute.KeyValue{attribute.String("source", "prompt")}, 1},
		{"lexivox.provider.requests", []attribute.KeyValue{attribute.String("status", "ok")}, 2},
		{"lexivox.provider.requests", []attribute.KeyValue{attribute.String("status", "error")}, 1},
		{"lexivox.provider.errors", []attribute.KeyValue{attribute.String("provider", "elevenlabs"), attribute.String("kind", "tts")}, 1},
	}
	for _, tt := range tests {
		if got := point(t, rm, tt.metric, tt.attrs...); got != tt.want {
			t.Errorf("%s%v = %d, want %d", tt.metric, tt.attrs, got, tt.want)
		}
	}
}

func TestMetrics_Instruments(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecognitionDuration.Record(ctx, 1.2)
	m.RecognitionDuration.Record(ctx, 0.3)
	m.SynthesisDuration.Record(ctx, 0.8)
	m.RecognitionErrors.Add(ctx, 1)
	m.SynthesisErrors.Add(ctx, 2)
	m.ProgressReportFailures.Add(ctx, 3)
	m.ActiveRecognitions.Add(ctx, 1)
	m.ActiveRecognitions.Add(ctx, 1)
	m.ActiveRecognitions.Add(ctx, -1)
	m.ActiveExercises.Add(ctx, 2)

	rm := collect(t, reader)
	tests := []struct {
		metric string
		want   int64
	}{
		{"lexivox.recognition.duration", 2},
		{"lexivox.synthesis.duration", 1},
		{"lexivox.recognition.errors", 1},
		{"lexivox.synthesis.errors", 2},
		{"lexivox.progress.report_failures", 3},
		{"lexivox.active_recognitions", 1},
		{"lexivox.active_exercises", 2},
	}
	for _, tt := range tests {
		if got := point(t, rm, tt.metric); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.metric, got, tt.want)
		}
	}
}

func TestMetrics_LatencyBuckets(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	m.SynthesisDuration.Record(context.Background(), 3)

	hist := findMetric(collect(t, reader), "lexivox.synthesis.duration").Data.(metricdata.Histogram[float64])
	dp := hist.DataPoints[0]
	if len(dp.Bounds) != len(latencyBuckets) {
		t.Fatalf("bounds = %v, want %v", dp.Bounds, latencyBuckets)
	}
	// 3s falls into (2, 4].
	for i, b := range dp.Bounds {
		if b == 4 && dp.BucketCounts[i] != 1 {
			t.Errorf("bucket <=4 count = %d, want 1", dp.BucketCounts[i])
		}
	}
}
