package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DraftRepo is the repository for the drafts table.
type DraftRepo struct {
	db DBTX
}

// NewDraftRepo builds a DraftRepo over db.
func NewDraftRepo(db DBTX) *DraftRepo {
	return &DraftRepo{db: db}
}

// Create inserts the outreach message body produced by stage F.
func (r *DraftRepo) Create(ctx context.Context, tenantID, campaignID, influencerID, body string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO drafts (id, tenant_id, campaign_id, influencer_id, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, id, tenantID, campaignID, influencerID, body, now)
	if err != nil {
		return "", fmt.Errorf("insert draft: %w", err)
	}
	return id, nil
}

// CountForCampaign counts drafts produced for a campaign.
func (r *DraftRepo) CountForCampaign(ctx context.Context, tenantID, campaignID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM drafts WHERE tenant_id = $1 AND campaign_id = $2
	`, tenantID, campaignID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count drafts: %w", err)
	}
	return count, nil
}
