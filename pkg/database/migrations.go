package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateVectorIndexes ensures the pgvector extension and the ivfflat
// cosine-distance indexes backing node_b's candidate prefilter exist. These
// live outside the plain-SQL migration files because ivfflat index creation
// wants `lists` tuned to table size in a real deployment; here we pick a
// conservative default suitable for a freshly migrated database.
func CreateVectorIndexes(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_vector_cosine
		ON embeddings USING ivfflat (vector vector_cosine_ops) WITH (lists = 100)`); err != nil {
		return fmt.Errorf("failed to create embeddings vector index: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_influencers_tenant_id
		ON influencers (tenant_id)`); err != nil {
		return fmt.Errorf("failed to create influencers tenant index: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_reservations_tenant_influencer
		ON reservations (tenant_id, influencer_id)`); err != nil {
		return fmt.Errorf("failed to create reservations index: %w", err)
	}

	return nil
}
