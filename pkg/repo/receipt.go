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

// ReceiptRepo is the repository for the receipts table, one row per
// stage-C contact attempt against an influencer for a campaign.
type ReceiptRepo struct {
	db DBTX
}

// NewReceiptRepo builds a ReceiptRepo over db.
func NewReceiptRepo(db DBTX) *ReceiptRepo {
	return &ReceiptRepo{db: db}
}

// Create inserts a receipt row.
func (r *ReceiptRepo) Create(ctx context.Context, tenantID, campaignID, influencerID string, detail map[string]any) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	var detailJSON []byte
	if detail != nil {
		var err error
		detailJSON, err = json.Marshal(detail)
		if err != nil {
			return "", fmt.Errorf("marshal detail_json: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receipts (id, tenant_id, campaign_id, influencer_id, detail_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, id, tenantID, campaignID, influencerID, detailJSON, now)
	if err != nil {
		return "", fmt.Errorf("insert receipt: %w", err)
	}
	return id, nil
}

// GetByID loads a receipt scoped to tenantID, returning (nil, nil) if absent.
func (r *ReceiptRepo) GetByID(ctx context.Context, tenantID, receiptID string) (*models.Receipt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, campaign_id, influencer_id, detail_json, created_at, updated_at
		FROM receipts
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, receiptID)

	var rec models.Receipt
	var detailJSON []byte
	err := row.Scan(&rec.ID, &rec.TenantID, &rec.CampaignID, &rec.InfluencerID, &detailJSON,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	if len(detailJSON) > 0 {
		if err := json.Unmarshal(detailJSON, &rec.DetailJSON); err != nil {
			return nil, fmt.Errorf("unmarshal detail_json: %w", err)
		}
	}
	return &rec, nil
}
