package stages

import (
	"context"
	"fmt"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/repo"
)

// NodeC handles node_c.input: record that the influencer was contacted and
// hand off to node D.
func (h *Handlers) NodeC(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
	tenantID := env.TenantID.String()
	campaignID := payloadString(env.Payload, "campaign_id")
	influencerID := payloadString(env.Payload, "influencer_id")
	if campaignID == "" || influencerID == "" {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, "node_c: missing campaign_id or influencer_id")
	}

	detail := map[string]any{"reservation_id": payloadString(env.Payload, "reservation_id")}
	if _, err := repo.NewReceiptRepo(h.env.DB).Create(ctx, tenantID, campaignID, influencerID, detail); err != nil {
		return fmt.Errorf("node_c: insert receipt: %w", err)
	}

	if err := recordCost(deps, env, models.NodeC, "mock_discovery", "discover", 0.001, 1.0); err != nil {
		return err
	}

	return publishSuccessor(ctx, h.env.Publisher, env, models.NodeD, bus.EventNodeDInput, map[string]any{
		"campaign_id":    campaignID,
		"influencer_id":  influencerID,
		"reservation_id": payloadString(env.Payload, "reservation_id"),
	}, fmt.Sprintf("receipt:%s", influencerID))
}
