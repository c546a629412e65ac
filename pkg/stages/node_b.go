package stages

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/pulse"
	"github.com/metismedia/metismedia/pkg/repo"
	"github.com/metismedia/metismedia/pkg/scoring"
)

const pulseCacheTTL = 24 * time.Hour

// scoredCandidate is a safety-prefilter row with its computed scores.
type scoredCandidate struct {
	repo.PrefilterCandidate
	RecencyScore      float64
	PolarityAlignment float64
	MMS               float64
}

// NodeB handles node_b.input: the Genesis Guard composition — prefilter,
// score, threshold, reserve, pulse-check, emit.
func (h *Handlers) NodeB(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
	tenantID := env.TenantID.String()

	campaignIDStr := payloadString(env.Payload, "campaign_id")
	if campaignIDStr == "" {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, "node_b: missing campaign_id")
	}

	campaign, err := repo.NewCampaignRepo(h.env.DB).GetByID(ctx, tenantID, campaignIDStr)
	if err != nil {
		return fmt.Errorf("node_b: load campaign: %w", err)
	}
	if campaign == nil {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, fmt.Sprintf("campaign %s not found", campaignIDStr))
	}
	brief := campaign.BriefJSON

	queryEmbeddingID := payloadString(env.Payload, "query_embedding_id")
	if queryEmbeddingID == "" {
		queryEmbeddingID = brief.QueryEmbeddingID
	}
	if queryEmbeddingID == "" {
		return completeWithZeroTargets(ctx, h.env.DB, tenantID, env.RunID, "no query_embedding_id")
	}

	campaignEmbedding, err := repo.NewEmbeddingRepo(h.env.DB).GetVector(ctx, tenantID, queryEmbeddingID)
	if err != nil {
		return fmt.Errorf("node_b: load campaign embedding: %w", err)
	}
	if campaignEmbedding == nil {
		return markRunFailed(ctx, h.env.DB, tenantID, env.RunID, "campaign embedding not found")
	}

	if err := recordCost(deps, env, models.NodeB, "postgres", "safety_prefilter", 0.001, 1.0); err != nil {
		return err
	}

	opts := repo.PrefilterOptions{
		Geography: brief.Geography,
	}
	if len(brief.ThirdRailTerms) > 0 {
		opts.ThirdRailPattern = joinThirdRail(brief.ThirdRailTerms)
	}
	if len(brief.PlatformVector) > 0 {
		opts.Platforms = brief.PlatformVector
	}

	rows, err := repo.NewInfluencerRepo(h.env.DB).SafetyPrefilterAndRank(ctx, tenantID, queryEmbeddingID, h.env.PreselectK, opts)
	if err != nil {
		return fmt.Errorf("node_b: safety prefilter: %w", err)
	}
	if len(rows) == 0 {
		return completeWithZeroTargets(ctx, h.env.DB, tenantID, env.RunID, "no candidates after safety prefilter")
	}

	if err := recordCost(deps, env, models.NodeB, "internal", "mms_compute", 0.0, float64(len(rows))); err != nil {
		return err
	}

	desiredPolarity := polarityIntentToDesired(brief.PolarityIntent)
	if brief.PolarityDesired != 0 {
		desiredPolarity = brief.PolarityDesired
	}
	now := time.Now().UTC()

	candidates := make([]scoredCandidate, 0, len(rows))
	for _, row := range rows {
		ageDays := 999.0
		if row.LastScrapedAt != nil {
			ageDays = now.Sub(*row.LastScrapedAt).Hours() / 24.0
		}
		recencyScore := scoring.Recency(ageDays)

		influencerPolarity := 0.0
		if row.PolarityScore != nil {
			influencerPolarity = *row.PolarityScore
		}
		polarityAlignment := scoring.PolarityAlignment(desiredPolarity, influencerPolarity)

		mms := scoring.MMS(row.Similarity, recencyScore, polarityAlignment, nil)

		candidates = append(candidates, scoredCandidate{
			PrefilterCandidate: row,
			RecencyScore:       recencyScore,
			PolarityAlignment:  polarityAlignment,
			MMS:                mms,
		})
	}

	tauPre := h.env.Thresholds.TauPre
	passing := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.MMS >= tauPre {
			passing = append(passing, c)
		}
	}
	if len(passing) == 0 {
		return completeWithZeroTargets(ctx, h.env.DB, tenantID, env.RunID, "no candidates passed MMS threshold")
	}
	sort.SliceStable(passing, func(i, j int) bool { return passing[i].MMS > passing[j].MMS })

	desiredCount := payloadInt(env.Payload, "limit", h.env.Defaults.DesiredCount)
	if desiredCount <= 0 {
		desiredCount = h.env.Defaults.DesiredCount
	}

	reserveLimit := 2 * desiredCount
	if reserveLimit > len(passing) {
		reserveLimit = len(passing)
	}

	reservationDuration := time.Duration(h.env.Defaults.ReservationDurationMinutes) * time.Minute
	if reservationDuration <= 0 {
		reservationDuration = 30 * time.Minute
	}

	tx, err := h.env.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("node_b: begin reservation tx: %w", err)
	}
	reserved, err := repo.ReserveTop(ctx, tx, tenantID, queryEmbeddingID, reserveLimit, reservationDuration,
		fmt.Sprintf("campaign:%s", campaignIDStr), models.EmbeddingKindBio)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("node_b: reserve candidates: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("node_b: commit reservation tx: %w", err)
	}

	reservationByInfluencer := make(map[string]string, len(reserved))
	for _, r := range reserved {
		reservationByInfluencer[r.InfluencerID] = r.ReservationID
	}
	if len(reservationByInfluencer) == 0 {
		return completeWithZeroTargets(ctx, h.env.DB, tenantID, env.RunID, "no candidates could be reserved")
	}

	reservedCandidates := make([]scoredCandidate, 0, len(reservationByInfluencer))
	for _, c := range passing {
		if _, ok := reservationByInfluencer[c.InfluencerID]; ok {
			reservedCandidates = append(reservedCandidates, c)
		}
	}

	// The pulse loop's writes (new recent embeddings, influencer stamps)
	// commit or roll back as one unit, so a retried envelope re-runs the
	// loop against unchanged state.
	pulseTx, err := h.env.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("node_b: begin pulse tx: %w", err)
	}
	checker := pulse.NewChecker(pulseTx, h.env.Pulses, h.env.Embeddings, pulseCacheTTL, h.env.Thresholds.PulseSimilarityMin, h.env.Defaults.PulseSummaryLimit)
	costFn := func(provider, operation string, unitCost, quantity float64) error {
		return recordCost(deps, env, models.NodeB, provider, operation, unitCost, quantity)
	}

	type passResult struct {
		candidate scoredCandidate
		result    pulse.Result
	}
	var pulsePassing, pulseFailing []passResult

	for _, c := range reservedCandidates {
		if len(pulsePassing) >= desiredCount {
			break
		}
		cand := pulse.Candidate{
			InfluencerID:       c.InfluencerID,
			PrimaryURL:         c.PrimaryURL,
			LastPulseCheckedAt: c.LastPulseCheckedAt,
			RecentEmbeddingID:  c.RecentEmbeddingID,
		}
		result, err := checker.Check(ctx, tenantID, cand, campaignEmbedding, costFn)
		if err != nil {
			pulseTx.Rollback()
			return fmt.Errorf("node_b: pulse check for %s: %w", c.InfluencerID, err)
		}
		if result.Status == models.PulseStatusPass {
			pulsePassing = append(pulsePassing, passResult{c, result})
		} else {
			pulseFailing = append(pulseFailing, passResult{c, result})
		}
	}
	if err := pulseTx.Commit(); err != nil {
		return fmt.Errorf("node_b: commit pulse tx: %w", err)
	}

	var cacheStatus models.CacheStatus
	switch {
	case len(pulsePassing) >= desiredCount:
		cacheStatus = models.CacheStatusHit
	case len(pulsePassing) > 0:
		cacheStatus = models.CacheStatusPartialHit
	default:
		cacheStatus = models.CacheStatusMiss
	}

	slog.Info("node_b genesis guard", "run_id", env.RunID, "passed", len(pulsePassing),
		"failed", len(pulseFailing), "cache_status", string(cacheStatus))

	for _, pr := range pulsePassing {
		reservationID := reservationByInfluencer[pr.candidate.InfluencerID]
		if err := publishSuccessor(ctx, h.env.Publisher, env, models.NodeB, bus.EventDirectiveEmitted, map[string]any{
			"campaign_id":    campaignIDStr,
			"influencer_id":  pr.candidate.InfluencerID,
			"reservation_id": reservationID,
			"action":         "proceed",
			"mms":            pr.candidate.MMS,
			"similarity":     pr.candidate.Similarity,
			"cache_status":   string(cacheStatus),
			"pulse_status":   string(pr.result.Status),
		}, fmt.Sprintf("proceed:%s", pr.candidate.InfluencerID)); err != nil {
			return err
		}

		if err := publishSuccessor(ctx, h.env.Publisher, env, models.NodeB, bus.EventNodeCInput, map[string]any{
			"campaign_id":    campaignIDStr,
			"influencer_id":  pr.candidate.InfluencerID,
			"reservation_id": reservationID,
		}, fmt.Sprintf("node_c:%s", pr.candidate.InfluencerID)); err != nil {
			return err
		}
	}

	if cacheStatus == models.CacheStatusMiss {
		neededCount := desiredCount - len(pulsePassing)
		if err := publishSuccessor(ctx, h.env.Publisher, env, models.NodeC, bus.EventDiscoveryNeeded, map[string]any{
			"campaign_id":  campaignIDStr,
			"needed_count": neededCount,
		}, "bulk"); err != nil {
			return err
		}
	}

	if len(pulsePassing) == 0 {
		return completeWithZeroTargets(ctx, h.env.DB, tenantID, env.RunID, "no candidates passed pulse check")
	}

	return nil
}

// polarityIntentToDesired maps a campaign's polarity intent to the desired
// polarity value the scorer fuses against each candidate.
func polarityIntentToDesired(intent models.PolarityIntent) float64 {
	switch intent {
	case models.PolarityIntentAllies:
		return 10
	case models.PolarityIntentCritics:
		return -10
	case models.PolarityIntentWatchlist:
		return 0
	default:
		return 10
	}
}

// joinThirdRail renders the campaign's third-rail terms as the
// "|"-joined regex alternation _safety_prefilter_candidates builds.
func joinThirdRail(terms []string) string {
	out := ""
	for i, t := range terms {
		if i > 0 {
			out += "|"
		}
		out += t
	}
	return out
}
