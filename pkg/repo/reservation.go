package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/metismedia/metismedia/pkg/models"
)

// ReservationRepo is the repository for the reservations table.
type ReservationRepo struct {
	db DBTX
}

// NewReservationRepo builds a ReservationRepo over db.
func NewReservationRepo(db DBTX) *ReservationRepo {
	return &ReservationRepo{db: db}
}

// Reserved is one result row of an atomic top-K reservation: the candidate
// influencer, its similarity to the query vector, and the freshly created
// reservation guarding it.
type Reserved struct {
	InfluencerID  string
	Similarity    float64
	ReservationID string
}

// ReserveTop atomically selects up to limit eligible influencers by cosine
// similarity to queryEmbeddingID and reserves each of them in the same
// transaction, using SELECT ... FOR UPDATE OF i SKIP LOCKED so concurrent
// callers never double-reserve a candidate. db must be a *sql.Tx: the
// locking clause only has transactional meaning inside one.
//
// Eligibility excludes do_not_contact, an active cooling-off period, and
// influencers already under an active reservation.
func ReserveTop(ctx context.Context, tx *sql.Tx, tenantID, queryEmbeddingID string, limit int, reservationDuration time.Duration, reason string, kind models.EmbeddingKind) ([]Reserved, error) {
	fkColumn := "bio_embedding_id"
	if kind == models.EmbeddingKindRecent {
		fkColumn = "recent_embedding_id"
	}

	now := time.Now().UTC()
	reservedUntil := now.Add(reservationDuration)

	query := fmt.Sprintf(`
		WITH query_vec AS (
			SELECT vector FROM embeddings
			WHERE id = $1 AND tenant_id = $2
		),
		eligible AS (
			SELECT
				i.id AS influencer_id,
				1 - (e.vector <=> (SELECT vector FROM query_vec)) AS similarity
			FROM influencers i
			JOIN embeddings e ON i.%s = e.id
			WHERE i.tenant_id = $2
			  AND e.tenant_id = $2
			  AND i.do_not_contact = false
			  AND (i.cooling_off_until IS NULL OR i.cooling_off_until <= $3)
			  AND (SELECT vector FROM query_vec) IS NOT NULL
			  AND NOT EXISTS (
				  SELECT 1 FROM reservations r
				  WHERE r.tenant_id = $2
				    AND r.influencer_id = i.id
				    AND r.reserved_until > $3
			  )
			ORDER BY e.vector <=> (SELECT vector FROM query_vec)
			LIMIT $4
			FOR UPDATE OF i SKIP LOCKED
		)
		SELECT influencer_id, similarity FROM eligible
	`, fkColumn)

	rows, err := tx.QueryContext(ctx, query, queryEmbeddingID, tenantID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select eligible influencers: %w", err)
	}

	type candidate struct {
		influencerID string
		similarity   float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.influencerID, &c.similarity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan eligible row: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(candidates) == 0 {
		return nil, nil
	}

	var reasonArg any
	if reason != "" {
		reasonArg = reason
	}

	out := make([]Reserved, 0, len(candidates))
	for _, c := range candidates {
		reservationID := uuid.New().String()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reservations (id, tenant_id, influencer_id, reserved_until, reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
		`, reservationID, tenantID, c.influencerID, reservedUntil, reasonArg, now)
		if err != nil {
			return nil, fmt.Errorf("insert reservation for %s: %w", c.influencerID, err)
		}
		out = append(out, Reserved{
			InfluencerID:  c.influencerID,
			Similarity:    c.similarity,
			ReservationID: reservationID,
		})
	}

	return out, nil
}

// IsReserved reports whether influencerID currently has an active reservation.
func (r *ReservationRepo) IsReserved(ctx context.Context, tenantID, influencerID string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM reservations
		WHERE tenant_id = $1 AND influencer_id = $2 AND reserved_until > $3
		LIMIT 1
	`, tenantID, influencerID, time.Now().UTC()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check reservation: %w", err)
	}
	return true, nil
}

// ClearExpired deletes every reservation past its reserved_until for a tenant.
func (r *ReservationRepo) ClearExpired(ctx context.Context, tenantID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM reservations WHERE tenant_id = $1 AND reserved_until < $2
	`, tenantID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clear expired reservations: %w", err)
	}
	return res.RowsAffected()
}

// GetByID loads a reservation scoped to tenantID, returning (nil, nil) if absent.
func (r *ReservationRepo) GetByID(ctx context.Context, tenantID, reservationID string) (*models.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, influencer_id, reserved_until, reason, created_at, updated_at
		FROM reservations
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, reservationID)

	var res models.Reservation
	var reason sql.NullString
	err := row.Scan(&res.ID, &res.TenantID, &res.InfluencerID, &res.ReservedUntil, &reason,
		&res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	if reason.Valid {
		res.Reason = reason.String
	}
	return &res, nil
}
