package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/metismedia/metismedia/pkg/models"
)

// InfluencerRepo is the repository for the influencers table, including
// pgvector similarity search.
type InfluencerRepo struct {
	db DBTX
}

// NewInfluencerRepo builds an InfluencerRepo over db.
func NewInfluencerRepo(db DBTX) *InfluencerRepo {
	return &InfluencerRepo{db: db}
}

// UpsertInput is the set of fields a discovery/scrape step may supply;
// nil pointer fields leave the existing column untouched on conflict via a
// COALESCE(EXCLUDED.x, influencers.x) upsert. CanonicalName always replaces
// the stored name.
type UpsertInput struct {
	CanonicalName     string
	PrimaryURL        *string
	Platform          *string
	Geography         *string
	FollowerCount     *int64
	PolarityScore     *float64
	BioEmbeddingID    *string
	RecentEmbeddingID *string
	BioText           *string
}

// Upsert inserts an influencer, or on a (tenant_id, primary_url) conflict
// merges in any newly supplied (non-nil) fields without clobbering existing
// ones; canonical_name is overwritten.
func (r *InfluencerRepo) Upsert(ctx context.Context, tenantID string, in UpsertInput) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO influencers (
			id, tenant_id, canonical_name, primary_url, platform, geography,
			follower_count, polarity_score, bio_embedding_id, recent_embedding_id,
			bio_text, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (tenant_id, primary_url) WHERE primary_url IS NOT NULL
		DO UPDATE SET
			canonical_name = EXCLUDED.canonical_name,
			platform = COALESCE(EXCLUDED.platform, influencers.platform),
			geography = COALESCE(EXCLUDED.geography, influencers.geography),
			follower_count = COALESCE(EXCLUDED.follower_count, influencers.follower_count),
			polarity_score = COALESCE(EXCLUDED.polarity_score, influencers.polarity_score),
			bio_embedding_id = COALESCE(EXCLUDED.bio_embedding_id, influencers.bio_embedding_id),
			recent_embedding_id = COALESCE(EXCLUDED.recent_embedding_id, influencers.recent_embedding_id),
			bio_text = COALESCE(EXCLUDED.bio_text, influencers.bio_text),
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`, id, tenantID, in.CanonicalName, in.PrimaryURL, in.Platform, in.Geography,
		in.FollowerCount, in.PolarityScore, in.BioEmbeddingID, in.RecentEmbeddingID, in.BioText, now)

	var returnedID string
	if err := row.Scan(&returnedID); err != nil {
		return "", fmt.Errorf("upsert influencer: %w", err)
	}
	return returnedID, nil
}

// FindByPrimaryURL looks up an influencer by its dedup key.
func (r *InfluencerRepo) FindByPrimaryURL(ctx context.Context, tenantID, url string) (*models.Influencer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, canonical_name, primary_url, platform, geography,
		       follower_count, polarity_score, bio_embedding_id, recent_embedding_id,
		       bio_text, last_scraped_at, last_pulse_checked_at, do_not_contact,
		       cooling_off_until, created_at, updated_at
		FROM influencers
		WHERE tenant_id = $1 AND primary_url = $2
	`, tenantID, url)
	return scanInfluencer(row)
}

// GetByID loads an influencer scoped to tenantID, returning (nil, nil) if absent.
func (r *InfluencerRepo) GetByID(ctx context.Context, tenantID, influencerID string) (*models.Influencer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, canonical_name, primary_url, platform, geography,
		       follower_count, polarity_score, bio_embedding_id, recent_embedding_id,
		       bio_text, last_scraped_at, last_pulse_checked_at, do_not_contact,
		       cooling_off_until, created_at, updated_at
		FROM influencers
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, influencerID)
	return scanInfluencer(row)
}

func scanInfluencer(row *sql.Row) (*models.Influencer, error) {
	var inf models.Influencer
	err := row.Scan(&inf.ID, &inf.TenantID, &inf.CanonicalName, &inf.PrimaryURL, &inf.Platform,
		&inf.Geography, &inf.FollowerCount, &inf.PolarityScore, &inf.BioEmbeddingID,
		&inf.RecentEmbeddingID, &inf.BioText, &inf.LastScrapedAt, &inf.LastPulseCheckedAt,
		&inf.DoNotContact, &inf.CoolingOffUntil, &inf.CreatedAt, &inf.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan influencer: %w", err)
	}
	return &inf, nil
}

// VectorSearchResult is one row of a similarity search: the candidate
// influencer and its cosine similarity (1 - cosine_distance) to the query.
type VectorSearchResult struct {
	InfluencerID string
	Similarity   float64
}

// VectorSearchByEmbeddingID ranks influencers by cosine similarity to the
// embedding identified by embeddingID, using bio_embedding_id or
// recent_embedding_id depending on kind.
func (r *InfluencerRepo) VectorSearchByEmbeddingID(ctx context.Context, tenantID, embeddingID string, kind models.EmbeddingKind, limit int) ([]VectorSearchResult, error) {
	fkColumn := "bio_embedding_id"
	if kind == models.EmbeddingKindRecent {
		fkColumn = "recent_embedding_id"
	}

	query := fmt.Sprintf(`
		WITH query_vec AS (
			SELECT vector FROM embeddings WHERE id = $1 AND tenant_id = $2
		)
		SELECT i.id, 1 - (e.vector <=> (SELECT vector FROM query_vec)) AS similarity
		FROM influencers i
		JOIN embeddings e ON i.%s = e.id
		WHERE i.tenant_id = $2
		  AND e.tenant_id = $2
		  AND (SELECT vector FROM query_vec) IS NOT NULL
		ORDER BY e.vector <=> (SELECT vector FROM query_vec)
		LIMIT $3
	`, fkColumn)

	rows, err := r.db.QueryContext(ctx, query, embeddingID, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []VectorSearchResult
	for rows.Next() {
		var res VectorSearchResult
		if err := rows.Scan(&res.InfluencerID, &res.Similarity); err != nil {
			return nil, fmt.Errorf("scan vector search row: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// PrefilterCandidate is one row of the stage B safety prefilter: a
// candidate influencer ranked by bio-embedding similarity to the campaign
// vector, carrying the extra fields stage B's scorer and pulse checker
// need so it never has to re-fetch the influencer row.
type PrefilterCandidate struct {
	InfluencerID       string
	Similarity         float64
	LastScrapedAt      *time.Time
	PolarityScore      *float64
	PrimaryURL         *string
	BioText            *string
	LastPulseCheckedAt *time.Time
	RecentEmbeddingID  *string
}

// PrefilterOptions narrows the safety prefilter by the campaign's optional
// slot constraints. Zero values (empty string/slice) impose no filter.
type PrefilterOptions struct {
	ThirdRailPattern string
	Platforms        []string
	Geography        string
}

// SafetyPrefilterAndRank runs the stage B "Safety Shield" query: excludes
// do_not_contact, an active cooling-off period, and any already-reserved
// influencer, then optionally excludes third-rail bio-text matches and
// filters by platform/geography, and ranks the remainder by bio-embedding
// cosine similarity to queryEmbeddingID, returning the top limit rows.
func (r *InfluencerRepo) SafetyPrefilterAndRank(ctx context.Context, tenantID, queryEmbeddingID string, limit int, opts PrefilterOptions) ([]PrefilterCandidate, error) {
	args := []any{queryEmbeddingID, tenantID, limit}
	clauses := ""

	if opts.ThirdRailPattern != "" {
		args = append(args, opts.ThirdRailPattern)
		clauses += fmt.Sprintf(" AND (i.bio_text IS NULL OR i.bio_text !~* $%d)", len(args))
	}
	if len(opts.Platforms) > 0 {
		args = append(args, pq(opts.Platforms))
		clauses += fmt.Sprintf(" AND (i.platform IS NULL OR i.platform = ANY($%d))", len(args))
	}
	if opts.Geography != "" {
		args = append(args, "%"+opts.Geography+"%")
		clauses += fmt.Sprintf(" AND (i.geography IS NULL OR i.geography ILIKE $%d)", len(args))
	}

	query := fmt.Sprintf(`
		WITH query_vec AS (
			SELECT vector FROM embeddings WHERE id = $1 AND tenant_id = $2
		)
		SELECT i.id, 1 - (e.vector <=> (SELECT vector FROM query_vec)) AS similarity,
		       i.last_scraped_at, i.polarity_score, i.primary_url, i.bio_text,
		       i.last_pulse_checked_at, i.recent_embedding_id
		FROM influencers i
		JOIN embeddings e ON i.bio_embedding_id = e.id
		WHERE i.tenant_id = $2
		  AND e.tenant_id = $2
		  AND i.do_not_contact = false
		  AND (i.cooling_off_until IS NULL OR i.cooling_off_until <= now())
		  AND (SELECT vector FROM query_vec) IS NOT NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM reservations r
		      WHERE r.tenant_id = $2 AND r.influencer_id = i.id AND r.reserved_until > now()
		  )
		  %s
		ORDER BY e.vector <=> (SELECT vector FROM query_vec)
		LIMIT $3
	`, clauses)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("safety prefilter: %w", err)
	}
	defer rows.Close()

	var out []PrefilterCandidate
	for rows.Next() {
		var c PrefilterCandidate
		if err := rows.Scan(&c.InfluencerID, &c.Similarity, &c.LastScrapedAt, &c.PolarityScore,
			&c.PrimaryURL, &c.BioText, &c.LastPulseCheckedAt, &c.RecentEmbeddingID); err != nil {
			return nil, fmt.Errorf("scan prefilter candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// pq renders a Go string slice as a Postgres text[] literal for use with
// the ANY($n) construct over a driver that doesn't natively support array
// binding (database/sql + pgx stdlib, the way this repo's tests run).
func pq(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

// UpdateLastScrapedAt stamps the influencer's last scrape time.
func (r *InfluencerRepo) UpdateLastScrapedAt(ctx context.Context, tenantID, influencerID string, scrapedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE influencers SET last_scraped_at = $1, updated_at = $2
		WHERE tenant_id = $3 AND id = $4
	`, scrapedAt, time.Now().UTC(), tenantID, influencerID)
	if err != nil {
		return false, fmt.Errorf("update last_scraped_at: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateLastPulseCheckedAt stamps the influencer's last pulse-check time and
// the recent embedding it now points at, in the same statement.
func (r *InfluencerRepo) UpdateLastPulseCheckedAt(ctx context.Context, tenantID, influencerID string, checkedAt time.Time, recentEmbeddingID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE influencers SET last_pulse_checked_at = $1, recent_embedding_id = $2, updated_at = $3
		WHERE tenant_id = $4 AND id = $5
	`, checkedAt, recentEmbeddingID, time.Now().UTC(), tenantID, influencerID)
	if err != nil {
		return false, fmt.Errorf("update last_pulse_checked_at: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
