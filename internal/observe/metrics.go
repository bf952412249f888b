// Package observe provides application-wide observability primitives for the
// bridge: OpenTelemetry metrics, distributed tracing, structured logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all bridge metrics.
const meterName = "github.com/bhargav1000/Finetuned-GameAI-Coach"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// EmbedDuration tracks embedding-provider latency per call.
	EmbedDuration metric.Float64Histogram

	// IndexWriteDuration tracks vector-index write latency.
	IndexWriteDuration metric.Float64Histogram

	// QueryDuration tracks end-to-end retrieval latency (embed plus index
	// search).
	QueryDuration metric.Float64Histogram

	// SuggestionDuration tracks tactical-suggestion latency including
	// fallback attempts.
	SuggestionDuration metric.Float64Histogram

	// --- Counters ---

	// EventsIndexed counts telemetry events written to the index.
	EventsIndexed metric.Int64Counter

	// SnapshotsIngested counts accepted game-state snapshots.
	SnapshotsIngested metric.Int64Counter

	// ArtifactsSaved counts snapshot artifacts written to disk.
	ArtifactsSaved metric.Int64Counter

	// ArtifactsDropped counts snapshot artifacts discarded because the
	// persist queue was full.
	ArtifactsDropped metric.Int64Counter

	// Suggestions counts served tactical suggestions. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("status", ...)
	Suggestions metric.Int64Counter

	// --- Error counters ---

	// EmbeddingErrors counts embedding-provider failures.
	EmbeddingErrors metric.Int64Counter

	// IndexErrors counts vector-index read/write failures.
	IndexErrors metric.Int64Counter

	// PersistErrors counts artifact write failures.
	PersistErrors metric.Int64Counter

	// --- Gauges ---

	// PersistQueueDepth tracks the number of artifacts waiting to be written.
	PersistQueueDepth metric.Int64UpDownCounter

	// ActiveStreams tracks the number of open websocket telemetry streams.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for embedding and inference latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EmbedDuration, err = m.Float64Histogram("aibridge.embed.duration",
		metric.WithDescription("Latency of embedding-provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IndexWriteDuration, err = m.Float64Histogram("aibridge.index.write.duration",
		metric.WithDescription("Latency of vector-index writes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueryDuration, err = m.Float64Histogram("aibridge.query.duration",
		metric.WithDescription("End-to-end retrieval latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SuggestionDuration, err = m.Float64Histogram("aibridge.suggestion.duration",
		metric.WithDescription("Latency of tactical-suggestion generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.EventsIndexed, err = m.Int64Counter("aibridge.events.indexed",
		metric.WithDescription("Total telemetry events written to the index."),
	); err != nil {
		return nil, err
	}
	if met.SnapshotsIngested, err = m.Int64Counter("aibridge.snapshots.ingested",
		metric.WithDescription("Total accepted game-state snapshots."),
	); err != nil {
		return nil, err
	}
	if met.ArtifactsSaved, err = m.Int64Counter("aibridge.artifacts.saved",
		metric.WithDescription("Total snapshot artifacts written to disk."),
	); err != nil {
		return nil, err
	}
	if met.ArtifactsDropped, err = m.Int64Counter("aibridge.artifacts.dropped",
		metric.WithDescription("Total snapshot artifacts dropped due to a full persist queue."),
	); err != nil {
		return nil, err
	}
	if met.Suggestions, err = m.Int64Counter("aibridge.suggestions",
		metric.WithDescription("Total tactical suggestions by provider and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.EmbeddingErrors, err = m.Int64Counter("aibridge.embedding.errors",
		metric.WithDescription("Total embedding-provider failures."),
	); err != nil {
		return nil, err
	}
	if met.IndexErrors, err = m.Int64Counter("aibridge.index.errors",
		metric.WithDescription("Total vector-index failures."),
	); err != nil {
		return nil, err
	}
	if met.PersistErrors, err = m.Int64Counter("aibridge.persist.errors",
		metric.WithDescription("Total artifact write failures."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.PersistQueueDepth, err = m.Int64UpDownCounter("aibridge.persist.queue.depth",
		metric.WithDescription("Number of artifacts waiting to be written."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("aibridge.active_streams",
		metric.WithDescription("Number of open websocket telemetry streams."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("aibridge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSuggestion is a convenience method that records a served suggestion
// with the standard attribute set.
func (m *Metrics) RecordSuggestion(ctx context.Context, provider, status string) {
	m.Suggestions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

// RecordEmbeddingError records one embedding-provider failure.
func (m *Metrics) RecordEmbeddingError(ctx context.Context, provider string) {
	m.EmbeddingErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordIndexError records one vector-index failure by operation ("add",
// "query").
func (m *Metrics) RecordIndexError(ctx context.Context, op string) {
	m.IndexErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}
