package stages

import (
	"context"
	"fmt"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/repo"
)

// NodeD handles node_d.input: upsert the campaign/influencer target card
// and hand off to node E.
func (h *Handlers) NodeD(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
	tenantID := env.TenantID.String()
	campaignID := payloadString(env.Payload, "campaign_id")
	influencerID := payloadString(env.Payload, "influencer_id")
	if campaignID == "" || influencerID == "" {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, "node_d: missing campaign_id or influencer_id")
	}

	detail := map[string]any{"reservation_id": payloadString(env.Payload, "reservation_id")}
	if _, err := repo.NewTargetCardRepo(h.env.DB).Upsert(ctx, tenantID, campaignID, influencerID, detail); err != nil {
		return fmt.Errorf("node_d: upsert target card: %w", err)
	}

	if err := recordCost(deps, env, models.NodeD, "postgres", "upsert_target_card", 0.001, 1.0); err != nil {
		return err
	}

	return publishSuccessor(ctx, h.env.Publisher, env, models.NodeE, bus.EventNodeEInput, map[string]any{
		"campaign_id":    campaignID,
		"influencer_id":  influencerID,
		"reservation_id": payloadString(env.Payload, "reservation_id"),
	}, fmt.Sprintf("target_card:%s", influencerID))
}
