package postgres

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
)

// collectionPattern restricts collection names to plain SQL identifiers so
// they can be interpolated into DDL and query text safely.
var collectionPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateCollection rejects collection names that are not plain identifiers.
func validateCollection(collection string) error {
	if !collectionPattern.MatchString(collection) {
		return fmt.Errorf("index postgres: collection %q is not a valid identifier", collection)
	}
	return nil
}

// ddl returns the collection DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddl(collection string, embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
    id          TEXT         PRIMARY KEY,
    embedding   vector(%[2]d),
    metadata    JSONB        NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_embedding
    ON %[1]s USING hnsw (embedding vector_cosine_ops);
`, collection, embeddingDimensions)
}

// Migrate creates or ensures the collection table and pgvector extension
// exist. Idempotent and safe to call on every application start.
//
// embeddingDimensions must match the embedding model configured for the
// deployment (e.g. 1536 for OpenAI text-embedding-3-small, 384 for
// all-minilm). Changing it after the first migration requires a manual
// schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, collection string, embeddingDimensions int) error {
	if err := validateCollection(collection); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, ddl(collection, embeddingDimensions)); err != nil {
		return fmt.Errorf("index postgres: migrate: %w", err)
	}
	return nil
}
