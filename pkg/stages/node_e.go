package stages

import (
	"context"
	"fmt"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/repo"
)

// NodeE handles node_e.input: resolve and insert one outreach contact
// method, then hand off to node F.
func (h *Handlers) NodeE(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
	tenantID := env.TenantID.String()
	campaignID := payloadString(env.Payload, "campaign_id")
	influencerID := payloadString(env.Payload, "influencer_id")
	if campaignID == "" || influencerID == "" {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, "node_e: missing campaign_id or influencer_id")
	}

	channel := payloadString(env.Payload, "channel")
	if channel == "" {
		channel = "email"
	}
	address := payloadString(env.Payload, "address")

	if _, err := repo.NewContactMethodRepo(h.env.DB).Create(ctx, tenantID, campaignID, influencerID, channel, address); err != nil {
		return fmt.Errorf("node_e: insert contact method: %w", err)
	}

	if err := recordCost(deps, env, models.NodeE, "mock_contact", "resolve_contact", 0.001, 1.0); err != nil {
		return err
	}

	return publishSuccessor(ctx, h.env.Publisher, env, models.NodeF, bus.EventNodeFInput, map[string]any{
		"campaign_id":    campaignID,
		"influencer_id":  influencerID,
		"reservation_id": payloadString(env.Payload, "reservation_id"),
	}, fmt.Sprintf("contact_method:%s", influencerID))
}
