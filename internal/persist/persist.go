// Package persist writes snapshot artifacts to disk off the request path.
//
// Ingest handlers enqueue artifacts and return immediately; a single worker
// drains the queue and writes the screenshot plus a JSON sidecar into the
// directory of the session the artifact was captured under. The queue is
// bounded: when it is full the oldest pending artifact is dropped, counted,
// and logged, so a slow disk can never stall ingestion.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/session"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/telemetry"
)

// defaultQueueCapacity bounds the number of artifacts waiting to be written.
const defaultQueueCapacity = 256

// Artifact is one snapshot pending a disk write. It pins the session it was
// captured under, so artifacts enqueued before a rollover still land in the
// old session's directory.
type Artifact struct {
	Session *session.Session
	Image   []byte
	Hero    telemetry.CharacterState
	Knight  telemetry.CharacterState
}

// Config configures a [Persister].
type Config struct {
	// QueueCapacity bounds the pending-artifact queue. Defaults to 256 if
	// zero.
	QueueCapacity int

	// Metrics receives queue and write instrumentation. Defaults to
	// [observe.DefaultMetrics] if nil.
	Metrics *observe.Metrics
}

// Persister owns the artifact queue and its single writer goroutine.
//
// Enqueue is safe for concurrent use. Enqueue must not be called after
// Close.
type Persister struct {
	queue   chan Artifact
	metrics *observe.Metrics

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPersister creates a Persister and starts its writer goroutine.
func NewPersister(cfg Config) *Persister {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	p := &Persister{
		queue:   make(chan Artifact, capacity),
		metrics: metrics,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Enqueue hands an artifact to the writer without blocking. When the queue
// is full, the oldest pending artifact is dropped to make room.
func (p *Persister) Enqueue(a Artifact) {
	ctx := context.Background()
	for {
		select {
		case p.queue <- a:
			p.metrics.PersistQueueDepth.Add(ctx, 1)
			return
		default:
		}
		select {
		case dropped := <-p.queue:
			p.metrics.PersistQueueDepth.Add(ctx, -1)
			p.metrics.ArtifactsDropped.Add(ctx, 1)
			slog.Warn("persist queue full, dropping oldest artifact",
				"session", dropped.Session.ID(), "t", dropped.Hero.Timestamp)
		default:
			// The worker got there first; retry the send.
		}
	}
}

// Pending returns the number of artifacts currently waiting to be written.
func (p *Persister) Pending() int {
	return len(p.queue)
}

// Close stops accepting artifacts and blocks until every already-enqueued
// artifact has been written (or failed and been logged).
func (p *Persister) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	p.wg.Wait()
}

func (p *Persister) run() {
	defer p.wg.Done()
	ctx := context.Background()
	for a := range p.queue {
		p.metrics.PersistQueueDepth.Add(ctx, -1)
		if err := p.save(a); err != nil {
			p.metrics.PersistErrors.Add(ctx, 1)
			slog.Error("failed to save snapshot artifact",
				"session", a.Session.ID(), "t", a.Hero.Timestamp, "error", err)
			continue
		}
		p.metrics.ArtifactsSaved.Add(ctx, 1)
	}
}

// save writes the screenshot and its JSON sidecar, numbered by the pinned
// session's sequence counter.
func (p *Persister) save(a Artifact) error {
	seq := a.Session.NextSeq()

	imgPath := filepath.Join(a.Session.Dir(), fmt.Sprintf("snapshot_%d.png", seq))
	if err := os.WriteFile(imgPath, a.Image, 0o644); err != nil {
		return fmt.Errorf("persist: write image: %w", err)
	}

	doc := map[string]any{
		"t":            a.Hero.Timestamp,
		"hero_state":   a.Hero.Metadata(),
		"knight_state": a.Knight.Metadata(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("persist: marshal sidecar: %w", err)
	}
	jsonPath := filepath.Join(a.Session.Dir(), fmt.Sprintf("snapshot_%d.json", seq))
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return fmt.Errorf("persist: write sidecar: %w", err)
	}

	slog.Debug("saved snapshot artifact",
		"session", a.Session.ID(), "seq", seq, "image_bytes", len(a.Image))
	return nil
}
