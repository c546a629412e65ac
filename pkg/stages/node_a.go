package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/repo"
)

// NodeA handles node_a.brief_finalized: derive the campaign's query
// embedding and hand off to node B. When the brief already carries a
// query_embedding_id it's used directly; otherwise, if the brief has free
// text and no embedding id yet, that text is embedded on the spot rather
// than completing the run with zero targets.
func (h *Handlers) NodeA(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
	tenantID := env.TenantID.String()

	campaignID := payloadString(env.Payload, "campaign_id")
	if campaignID == "" {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, "node_a: missing campaign_id")
	}

	brief, err := decodeBrief(env.Payload["brief"])
	if err != nil {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, fmt.Sprintf("node_a: invalid brief: %v", err))
	}

	queryEmbeddingID := brief.QueryEmbeddingID
	if queryEmbeddingID == "" && brief.FreeTextBrief != "" {
		vectors, embedErr := h.env.Embeddings.Embed(ctx, []string{brief.FreeTextBrief}, "")
		if costErr := recordCost(deps, env, models.NodeA, "embedding_provider", "embed", 0.0001, 1.0); costErr != nil {
			return costErr
		}
		if embedErr == nil && len(vectors) > 0 {
			vector := vectors[0]
			id, insertErr := repo.NewEmbeddingRepo(h.env.DB).Create(ctx, tenantID, models.EmbeddingKindCampaign, "node_a_fallback", len(vector), 1.0, vector)
			if insertErr != nil {
				return fmt.Errorf("node_a: insert fallback embedding: %w", insertErr)
			}
			queryEmbeddingID = id
		}
	}

	if queryEmbeddingID == "" {
		return completeWithZeroTargets(ctx, h.env.DB, tenantID, env.RunID, "no query_embedding_id resolvable from brief")
	}

	desiredCount := h.env.Defaults.DesiredCount
	if brief.DesiredCount > 0 {
		desiredCount = brief.DesiredCount
	}

	return publishSuccessor(ctx, h.env.Publisher, env, models.NodeB, bus.EventNodeBInput, map[string]any{
		"campaign_id":        campaignID,
		"query_embedding_id": queryEmbeddingID,
		"limit":              desiredCount,
	}, "brief_finalized")
}

// decodeBrief round-trips the envelope payload's generic "brief" map back
// into a typed models.Brief.
func decodeBrief(raw any) (models.Brief, error) {
	var brief models.Brief
	if raw == nil {
		return brief, nil
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return brief, err
	}
	if err := json.Unmarshal(blob, &brief); err != nil {
		return brief, err
	}
	return brief, nil
}
