package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metismedia/metismedia/pkg/models"
)

// EmbeddingRepo is the repository for the immutable embeddings table.
type EmbeddingRepo struct {
	db DBTX
}

// NewEmbeddingRepo builds an EmbeddingRepo over db.
func NewEmbeddingRepo(db DBTX) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

// encodeVector renders a float32 slice as the pgvector text literal
// "[v1,v2,...]" built client-side before binding it to the vector column.
func encodeVector(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(float64(x), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// decodeVector parses a pgvector text literal back into a float32 slice.
func decodeVector(s string) ([]float32, error) {
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

// Create inserts a new embedding row and returns its ID.
func (r *EmbeddingRepo) Create(ctx context.Context, tenantID string, kind models.EmbeddingKind, model string, dims int, norm float64, vector []float32) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO embeddings (id, tenant_id, kind, model, dims, norm, vector, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, tenantID, kind, model, dims, norm, encodeVector(vector), now)
	if err != nil {
		return "", fmt.Errorf("insert embedding: %w", err)
	}
	return id, nil
}

// GetMeta loads an embedding's metadata (without materializing the vector).
func (r *EmbeddingRepo) GetMeta(ctx context.Context, tenantID, embeddingID string) (*models.Embedding, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, kind, model, dims, norm, created_at
		FROM embeddings
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, embeddingID)

	var e models.Embedding
	err := row.Scan(&e.ID, &e.TenantID, &e.Kind, &e.Model, &e.Dims, &e.Norm, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan embedding meta: %w", err)
	}
	return &e, nil
}

// GetVector loads an embedding's vector, decoded from pgvector's text form.
func (r *EmbeddingRepo) GetVector(ctx context.Context, tenantID, embeddingID string) ([]float32, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT vector::text
		FROM embeddings
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, embeddingID)

	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan embedding vector: %w", err)
	}
	return decodeVector(raw)
}
