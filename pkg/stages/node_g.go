package stages

import (
	"context"
	"fmt"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/ledger"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/repo"
)

// NodeG handles node_g.input: tally what the run produced, read the
// ledger's per-run totals, and write the run to completed. Terminal node —
// no successor event.
func (h *Handlers) NodeG(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
	tenantID := env.TenantID.String()
	campaignID := payloadString(env.Payload, "campaign_id")
	if campaignID == "" {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, "node_g: missing campaign_id")
	}

	targetCards, drafts, err := repo.NewCampaignRepo(h.env.DB).CountTargetCardsAndDrafts(ctx, tenantID, campaignID)
	if err != nil {
		return fmt.Errorf("node_g: count target cards and drafts: %w", err)
	}

	totalCost := 0.0
	costSummary := map[string]any{}
	if summarizer, ok := deps.Ledger.(ledger.Summarizer); ok {
		totalCost = summarizer.TotalDollars(env.RunID)
		byNode, byProvider := summarizer.Summary(env.RunID)
		costSummary = map[string]any{"by_node": byNode, "by_provider": byProvider}
	}

	result := map[string]any{
		"target_cards_count": targetCards,
		"drafts_count":       drafts,
		"total_cost_dollars": totalCost,
		"cost_summary":       costSummary,
		"notes":              []string{},
	}

	if _, err := repo.NewRunRepo(h.env.DB).UpdateStatus(ctx, tenantID, env.RunID, models.RunStatusCompleted, "", result); err != nil {
		return fmt.Errorf("node_g: complete run: %w", err)
	}
	return nil
}
