// Package observe provides observability primitives for the Naphome acoustic
// front end: OpenTelemetry metrics and rate-limited logging for the tick
// loop.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Naphome metrics.
const meterName = "github.com/Naptick/Naphome-Firmware-sub000"

// Metrics holds all OpenTelemetry metric instruments for the pipeline.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TickDuration tracks wall-clock time spent per pipeline tick.
	TickDuration metric.Float64Histogram

	// FramesProcessed counts capture frames that completed a full tick.
	FramesProcessed metric.Int64Counter

	// CaptureTimeouts counts ticks skipped because no audio arrived in time.
	CaptureTimeouts metric.Int64Counter

	// CaptureErrors counts capture device I/O failures.
	CaptureErrors metric.Int64Counter

	// FeedErrors counts failed front-end feed calls.
	FeedErrors metric.Int64Counter

	// FetchErrors counts failed front-end fetch polls.
	FetchErrors metric.Int64Counter

	// DroppedSamples counts samples discarded by the front-end accumulator
	// on overflow.
	DroppedSamples metric.Int64Counter

	// WakeDetections counts accepted wake-word detections. Use with
	// attribute.Int("word_index", ...).
	WakeDetections metric.Int64Counter

	// WakeSuppressed counts detections dropped inside the cooldown window.
	WakeSuppressed metric.Int64Counter

	// LedWriteErrors counts failed LED refreshes.
	LedWriteErrors metric.Int64Counter

	// AlertActive tracks whether the wake alert is currently displayed
	// (0 or 1).
	AlertActive metric.Int64UpDownCounter
}

// tickBuckets defines histogram bucket boundaries (in seconds) sized for a
// 20 ms tick budget.
var tickBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.02, 0.05, 0.1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TickDuration, err = m.Float64Histogram("naphome.pipeline.tick.duration",
		metric.WithDescription("Wall-clock time spent per pipeline tick."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tickBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FramesProcessed, err = m.Int64Counter("naphome.capture.frames",
		metric.WithDescription("Capture frames that completed a full tick."),
	); err != nil {
		return nil, err
	}
	if met.CaptureTimeouts, err = m.Int64Counter("naphome.capture.timeouts",
		metric.WithDescription("Ticks skipped because no audio arrived in time."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("naphome.capture.errors",
		metric.WithDescription("Capture device I/O failures."),
	); err != nil {
		return nil, err
	}
	if met.FeedErrors, err = m.Int64Counter("naphome.frontend.feed_errors",
		metric.WithDescription("Failed front-end feed calls."),
	); err != nil {
		return nil, err
	}
	if met.FetchErrors, err = m.Int64Counter("naphome.frontend.fetch_errors",
		metric.WithDescription("Failed front-end fetch polls."),
	); err != nil {
		return nil, err
	}
	if met.DroppedSamples, err = m.Int64Counter("naphome.frontend.dropped_samples",
		metric.WithDescription("Samples discarded by the accumulator on overflow."),
	); err != nil {
		return nil, err
	}
	if met.WakeDetections, err = m.Int64Counter("naphome.wake.detections",
		metric.WithDescription("Accepted wake-word detections by word index."),
	); err != nil {
		return nil, err
	}
	if met.WakeSuppressed, err = m.Int64Counter("naphome.wake.suppressed",
		metric.WithDescription("Detections dropped inside the cooldown window."),
	); err != nil {
		return nil, err
	}
	if met.LedWriteErrors, err = m.Int64Counter("naphome.led.write_errors",
		metric.WithDescription("Failed LED refreshes."),
	); err != nil {
		return nil, err
	}
	if met.AlertActive, err = m.Int64UpDownCounter("naphome.wake.alert_active",
		metric.WithDescription("Whether the wake alert is currently displayed."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordWakeDetection records an accepted detection with its word index.
func (m *Metrics) RecordWakeDetection(ctx context.Context, wordIndex int) {
	m.WakeDetections.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("word_index", wordIndex)),
	)
}
