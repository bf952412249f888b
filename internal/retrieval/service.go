// Package retrieval answers free-text similarity queries against the vector
// index.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/internal/observe"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index"
	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/provider/embeddings"
)

// ErrEmptyQuery is returned for queries with no text.
var ErrEmptyQuery = errors.New("empty query text")

// DefaultK is the result count used when the caller does not ask for a
// specific one.
const DefaultK = 10

// defaultInferenceTimeout bounds the query embedding call.
const defaultInferenceTimeout = 30 * time.Second

// Config configures a [Service].
type Config struct {
	Embedder embeddings.Provider
	Store    index.Store

	// DefaultK overrides the package default result count when positive.
	DefaultK int

	// InferenceTimeout bounds the embedding call for each query. Defaults to
	// 30s if zero, so a stalled backend cannot hang the request.
	InferenceTimeout time.Duration

	// Metrics defaults to [observe.DefaultMetrics] if nil.
	Metrics *observe.Metrics
}

// Service embeds query text and searches the index.
//
// Service is safe for concurrent use.
type Service struct {
	embedder embeddings.Provider
	store    index.Store
	defaultK int
	timeout  time.Duration
	metrics  *observe.Metrics
}

// NewService creates a Service from cfg.
func NewService(cfg Config) *Service {
	defaultK := cfg.DefaultK
	if defaultK <= 0 {
		defaultK = DefaultK
	}
	timeout := cfg.InferenceTimeout
	if timeout <= 0 {
		timeout = defaultInferenceTimeout
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Service{
		embedder: cfg.Embedder,
		store:    cfg.Store,
		defaultK: defaultK,
		timeout:  timeout,
		metrics:  metrics,
	}
}

// Query embeds text and returns the k nearest records, most similar first.
// k <= 0 selects the service default. Querying an empty index returns an
// empty slice. Query does not mutate the index, so repeating a query
// returns the same results.
func (s *Service) Query(ctx context.Context, text string, k int) ([]index.Result, error) {
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.defaultK
	}

	start := time.Now()
	defer func() {
		s.metrics.QueryDuration.Record(ctx, time.Since(start).Seconds())
	}()

	embedCtx, cancel := context.WithTimeout(ctx, s.timeout)
	vec, err := s.embedder.Embed(embedCtx, text)
	cancel()
	if err != nil {
		s.metrics.RecordEmbeddingError(ctx, s.embedder.ModelID())
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	results, err := s.store.Query(ctx, vec, k)
	if err != nil {
		s.metrics.RecordIndexError(ctx, "query")
		return nil, fmt.Errorf("retrieval: search index: %w", err)
	}

	observe.Logger(ctx).Debug("served similarity query", "k", k, "results", len(results))
	return results, nil
}
