package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/metismedia/metismedia/pkg/models"
)

// CampaignRepo is the repository for the campaigns table.
type CampaignRepo struct {
	db DBTX
}

// NewCampaignRepo builds a CampaignRepo over db.
func NewCampaignRepo(db DBTX) *CampaignRepo {
	return &CampaignRepo{db: db}
}

// Create inserts a campaign row carrying the finalized brief.
func (r *CampaignRepo) Create(ctx context.Context, tenantID, traceID, runID string, brief models.Brief) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	briefJSON, err := json.Marshal(brief)
	if err != nil {
		return "", fmt.Errorf("marshal brief_json: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, tenant_id, trace_id, run_id, brief_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, id, tenantID, traceID, runID, briefJSON, now)
	if err != nil {
		return "", fmt.Errorf("insert campaign: %w", err)
	}
	return id, nil
}

// GetByID loads a campaign scoped to tenantID, returning (nil, nil) if absent.
func (r *CampaignRepo) GetByID(ctx context.Context, tenantID, campaignID string) (*models.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, trace_id, run_id, brief_json, created_at, updated_at
		FROM campaigns
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, campaignID)

	var campaign models.Campaign
	var briefJSON []byte
	err := row.Scan(&campaign.ID, &campaign.TenantID, &campaign.TraceID, &campaign.RunID,
		&briefJSON, &campaign.CreatedAt, &campaign.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan campaign: %w", err)
	}
	if err := json.Unmarshal(briefJSON, &campaign.BriefJSON); err != nil {
		return nil, fmt.Errorf("unmarshal brief_json: %w", err)
	}
	return &campaign, nil
}

// CountTargetCardsAndDrafts returns the terminal-node counters for a
// campaign's result_json (node_g's tally of what was produced).
func (r *CampaignRepo) CountTargetCardsAndDrafts(ctx context.Context, tenantID, campaignID string) (targetCards, drafts int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM target_cards WHERE tenant_id = $1 AND campaign_id = $2),
			(SELECT count(*) FROM drafts WHERE tenant_id = $1 AND campaign_id = $2)
	`, tenantID, campaignID)
	if err := row.Scan(&targetCards, &drafts); err != nil {
		return 0, 0, fmt.Errorf("count target cards and drafts: %w", err)
	}
	return targetCards, drafts, nil
}
