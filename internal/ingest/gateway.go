// Package ingest accepts raw telemetry, embeds it, and writes it to the
// vector index.
//
// The gateway is the single entry point for both event batches and snapshot
// payloads. It validates everything up front, embeds the descriptive texts
// in one provider call, and upserts the resulting records in one index
// write. Snapshot artifacts are handed to the persister before any network
// call so a failing embedding provider never loses a screenshot.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/persist"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/session"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/telemetry"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/embeddings"
)

// Sentinel errors used by the transport layer to pick response codes.
var (
	// ErrValidation marks payloads with missing or out-of-range fields.
	ErrValidation = errors.New("invalid payload")

	// ErrDecoding marks snapshot images that fail base64 decoding.
	ErrDecoding = errors.New("undecodable image")

	// ErrEmbedding marks embedding-provider failures.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexWrite marks vector-index write failures.
	ErrIndexWrite = errors.New("index write failed")
)

// defaultInferenceTimeout bounds a single embedding call.
const defaultInferenceTimeout = 30 * time.Second

// Config configures a [Gateway].
type Config struct {
	Embedder  embeddings.Provider
	Store     index.Store
	Persister *persist.Persister
	Sessions  *session.Manager

	// InferenceTimeout bounds each embedding call. Defaults to 30s if zero.
	InferenceTimeout time.Duration

	// Metrics defaults to [observe.DefaultMetrics] if nil.
	Metrics *observe.Metrics
}

// Gateway ingests telemetry into the vector index.
//
// Gateway is safe for concurrent use.
type Gateway struct {
	embedder  embeddings.Provider
	store     index.Store
	persister *persist.Persister
	sessions  *session.Manager
	timeout   time.Duration
	metrics   *observe.Metrics
}

// NewGateway creates a Gateway from cfg.
func NewGateway(cfg Config) *Gateway {
	timeout := cfg.InferenceTimeout
	if timeout <= 0 {
		timeout = defaultInferenceTimeout
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Gateway{
		embedder:  cfg.Embedder,
		store:     cfg.Store,
		persister: cfg.Persister,
		sessions:  cfg.Sessions,
		timeout:   timeout,
		metrics:   metrics,
	}
}

// IngestEvents validates, embeds, and indexes a batch of events. The whole
// batch is rejected if any single event is invalid; nothing reaches the
// embedder or the index in that case. An empty batch is a no-op.
func (g *Gateway) IngestEvents(ctx context.Context, events []telemetry.Event) error {
	if len(events) == 0 {
		return nil
	}

	var errs []error
	for i, e := range events {
		if err := e.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("event %d: %v", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrValidation, errors.Join(errs...))
	}

	texts := make([]string, len(events))
	for i, e := range events {
		texts[i] = e.Text()
	}
	vectors, err := g.embedBatch(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]index.Record, len(events))
	for i, e := range events {
		records[i] = index.Record{
			ID:        e.ID(),
			Embedding: vectors[i],
			Metadata:  e.Metadata(),
		}
	}
	if err := g.addRecords(ctx, records); err != nil {
		return err
	}

	g.metrics.EventsIndexed.Add(ctx, int64(len(events)))
	observe.Logger(ctx).Debug("indexed event batch", "events", len(events))
	return nil
}

// IngestSnapshot validates and decodes a snapshot, queues its artifact for
// disk, and indexes both character states. The artifact is enqueued before
// the embedding call, pinned to the session that is current at that moment.
func (g *Gateway) IngestSnapshot(ctx context.Context, snap telemetry.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	img, err := snap.DecodeImage()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecoding, err)
	}

	g.persister.Enqueue(persist.Artifact{
		Session: g.sessions.Current(),
		Image:   img,
		Hero:    snap.HeroState,
		Knight:  snap.KnightState,
	})

	states := []telemetry.CharacterState{snap.HeroState, snap.KnightState}
	texts := make([]string, len(states))
	for i, s := range states {
		texts[i] = s.Text()
	}
	vectors, err := g.embedBatch(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]index.Record, len(states))
	for i, s := range states {
		records[i] = index.Record{
			ID:        s.ID(),
			Embedding: vectors[i],
			Metadata:  s.Metadata(),
		}
	}
	if err := g.addRecords(ctx, records); err != nil {
		return err
	}

	g.metrics.SnapshotsIngested.Add(ctx, 1)
	observe.Logger(ctx).Debug("indexed snapshot",
		"t", snap.HeroState.Timestamp, "image_bytes", len(img))
	return nil
}

func (g *Gateway) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	vectors, err := g.embedder.EmbedBatch(embedCtx, texts)
	g.metrics.EmbedDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		g.metrics.RecordEmbeddingError(ctx, g.embedder.ModelID())
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		g.metrics.RecordEmbeddingError(ctx, g.embedder.ModelID())
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vectors), len(texts))
	}
	return vectors, nil
}

func (g *Gateway) addRecords(ctx context.Context, records []index.Record) error {
	start := time.Now()
	err := g.store.Add(ctx, records)
	g.metrics.IndexWriteDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		g.metrics.RecordIndexError(ctx, "add")
		return fmt.Errorf("%w: %v", ErrIndexWrite, err)
	}
	return nil
}
