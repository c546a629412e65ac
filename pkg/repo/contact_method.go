package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContactMethodRepo is the repository for the contact_methods table.
type ContactMethodRepo struct {
	db DBTX
}

// NewContactMethodRepo builds a ContactMethodRepo over db.
func NewContactMethodRepo(db DBTX) *ContactMethodRepo {
	return &ContactMethodRepo{db: db}
}

// Create inserts a resolved outreach channel, stage E's output row.
func (r *ContactMethodRepo) Create(ctx context.Context, tenantID, campaignID, influencerID, channel, address string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_methods (id, tenant_id, campaign_id, influencer_id, channel, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, tenantID, campaignID, influencerID, channel, address, now)
	if err != nil {
		return "", fmt.Errorf("insert contact method: %w", err)
	}
	return id, nil
}
