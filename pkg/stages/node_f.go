package stages

import (
	"context"
	"fmt"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/repo"
)

// NodeF handles node_f.input: insert the drafted outreach message body and
// hand off to node G.
func (h *Handlers) NodeF(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
	tenantID := env.TenantID.String()
	campaignID := payloadString(env.Payload, "campaign_id")
	influencerID := payloadString(env.Payload, "influencer_id")
	if campaignID == "" || influencerID == "" {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, "node_f: missing campaign_id or influencer_id")
	}

	body := payloadString(env.Payload, "body")
	if body == "" {
		body = fmt.Sprintf("Draft outreach message for influencer %s", influencerID)
	}

	if _, err := repo.NewDraftRepo(h.env.DB).Create(ctx, tenantID, campaignID, influencerID, body); err != nil {
		return fmt.Errorf("node_f: insert draft: %w", err)
	}

	if err := recordCost(deps, env, models.NodeF, "mock_llm", "draft_generation", 0.001, 1.0); err != nil {
		return err
	}

	return publishSuccessor(ctx, h.env.Publisher, env, models.NodeG, bus.EventNodeGInput, map[string]any{
		"campaign_id": campaignID,
	}, fmt.Sprintf("draft:%s", influencerID))
}
