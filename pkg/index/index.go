// Package index defines the vector index store abstraction used for
// similarity retrieval over embedded game telemetry.
//
// A store persists (id, embedding, metadata) records and answers
// nearest-neighbour queries by embedding. Metadata values must be storage
// primitives (strings, numbers, booleans) — composite fields such as
// positions are flattened to strings before they reach the store.
//
// Implementations must be safe for concurrent use.
package index

import (
	"context"
	"fmt"
)

// Record is one indexed entry: an embedding vector plus the flattened
// metadata of the event or character state it was derived from.
//
// IDs must be unique within the index; adding a record with an existing id
// replaces the previous one.
type Record struct {
	ID        string
	Embedding []float32
	Metadata  map[string]any
}

// Validate checks that the record has an id, an embedding, and only scalar
// metadata values.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("index: record id must not be empty")
	}
	if len(r.Embedding) == 0 {
		return fmt.Errorf("index: record %q has no embedding", r.ID)
	}
	for k, v := range r.Metadata {
		switch v.(type) {
		case string, bool,
			int, int32, int64,
			float32, float64:
		default:
			return fmt.Errorf("index: record %q metadata %q has non-scalar type %T; flatten it first", r.ID, k, v)
		}
	}
	return nil
}

// Result is one ranked query hit. Embeddings are not returned to callers.
type Result struct {
	// ID is the record's unique id.
	ID string

	// Metadata is the record's stored metadata.
	Metadata map[string]any

	// Distance is the cosine distance to the query embedding; results are
	// ordered by ascending distance (most similar first).
	Distance float32
}

// Store is the abstraction over any vector index backend.
type Store interface {
	// Add upserts all records in one call. The batch is atomic: either every
	// record is indexed or none is.
	Add(ctx context.Context, records []Record) error

	// Query returns the k records closest to the embedding, ordered by
	// ascending distance. An empty index yields an empty slice, not an error.
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)

	// Count returns the number of indexed records.
	Count(ctx context.Context) (int64, error)
}
