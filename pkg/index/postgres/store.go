// Package postgres provides a PostgreSQL-backed implementation of the vector
// index store using the pgvector extension.
//
// Each store owns one collection: a table with an id, a vector column of
// fixed dimension, a JSONB metadata column, and an HNSW index for fast
// approximate nearest-neighbour search by cosine distance. [Migrate] is run
// on construction and is idempotent.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, "duel", 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Add(ctx, records)
//	results, _ := store.Query(ctx, queryVec, 10)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/bhargav1000/Finetuned-GameAI-Coach/pkg/index"
)

// Compile-time interface check.
var _ index.Store = (*Store)(nil)

// Store is a pgvector-backed [index.Store]. All methods are safe for
// concurrent use; the pool serializes writers internally.
type Store struct {
	pool       *pgxpool.Pool
	collection string
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and ensures
// the collection table exists.
//
// collection names the backing table and must be a plain identifier
// (letters, digits, underscores). embeddingDimensions must match the output
// dimension of the embedding model; changing it after the first migration
// requires a manual schema change.
func NewStore(ctx context.Context, dsn, collection string, embeddingDimensions int) (*Store, error) {
	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if embeddingDimensions <= 0 {
		return nil, fmt.Errorf("index postgres: embedding dimensions must be positive, got %d", embeddingDimensions)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("index postgres: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so vector columns can
	// be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("index postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("index postgres: ping: %w", err)
	}

	if err := Migrate(ctx, pool, collection, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("index postgres: migrate: %w", err)
	}

	return &Store{pool: pool, collection: collection}, nil
}

// Add implements [index.Store]. The whole batch runs in one transaction:
// a failure on any record rolls back every record.
func (s *Store) Add(ctx context.Context, records []index.Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
		    embedding = EXCLUDED.embedding,
		    metadata  = EXCLUDED.metadata`, s.collection)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("index postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(q, r.ID, pgvector.NewVector(r.Embedding), r.Metadata)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("index postgres: add batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("index postgres: commit: %w", err)
	}
	return nil
}

// Query implements [index.Store]. Results are ordered by ascending cosine
// distance (most similar first).
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]index.Result, error) {
	if k <= 0 {
		return []index.Result{}, nil
	}

	q := fmt.Sprintf(`
		SELECT id, metadata, embedding <=> $1 AS distance
		FROM   %s
		ORDER  BY distance
		LIMIT  $2`, s.collection)

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("index postgres: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (index.Result, error) {
		var r index.Result
		if err := row.Scan(&r.ID, &r.Metadata, &r.Distance); err != nil {
			return index.Result{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("index postgres: scan rows: %w", err)
	}
	if results == nil {
		results = []index.Result{}
	}
	return results, nil
}

// Count implements [index.Store].
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", s.collection)).Scan(&n); err != nil {
		return 0, fmt.Errorf("index postgres: count: %w", err)
	}
	return n, nil
}

// Ping checks database connectivity. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
