package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TargetCardRepo is the repository for the target_cards table.
type TargetCardRepo struct {
	db DBTX
}

// NewTargetCardRepo builds a TargetCardRepo over db.
func NewTargetCardRepo(db DBTX) *TargetCardRepo {
	return &TargetCardRepo{db: db}
}

// Upsert inserts, or updates in place, the one target card keyed by
// (tenant_id, campaign_id, influencer_id) — stage D's idempotent summary
// write, safe to run again on a retried event without creating duplicates.
func (r *TargetCardRepo) Upsert(ctx context.Context, tenantID, campaignID, influencerID string, detail map[string]any) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail_json: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO target_cards (id, tenant_id, campaign_id, influencer_id, detail_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (tenant_id, campaign_id, influencer_id)
		DO UPDATE SET detail_json = EXCLUDED.detail_json, updated_at = EXCLUDED.updated_at
		RETURNING id
	`, id, tenantID, campaignID, influencerID, detailJSON, now)

	var returnedID string
	if err := row.Scan(&returnedID); err != nil {
		return "", fmt.Errorf("upsert target card: %w", err)
	}
	return returnedID, nil
}

// CountForCampaign counts target cards produced for a campaign.
func (r *TargetCardRepo) CountForCampaign(ctx context.Context, tenantID, campaignID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM target_cards WHERE tenant_id = $1 AND campaign_id = $2
	`, tenantID, campaignID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count target cards: %w", err)
	}
	return count, nil
}
