// Package pulse implements the freshness gate that decides whether a
// reserved candidate's recent activity still aligns with a campaign,
// following a cache-then-fetch-then-store shape, with the cache itself
// being the influencer row's own last_pulse_checked_at/recent_embedding_id
// columns rather than a separate in-memory store.
package pulse

import (
	"context"
	"fmt"
	"time"

	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/providers"
	"github.com/metismedia/metismedia/pkg/repo"
)

// Candidate carries the fields Checker needs from an influencer row; stage
// B passes these through from its own prefilter query rather than Checker
// re-fetching the influencer.
type Candidate struct {
	InfluencerID       string
	PrimaryURL         *string
	LastPulseCheckedAt *time.Time
	RecentEmbeddingID  *string
}

// Result is the outcome of a pulse check.
type Result struct {
	Status            models.PulseStatus
	Similarity        float64
	RecentEmbeddingID string
}

// Checker runs the pulse-check algorithm: reuse a fresh cached recent
// embedding if one exists, otherwise fetch new summaries, embed them, and
// persist the result for future checks to reuse.
type Checker struct {
	embeddings   *repo.EmbeddingRepo
	influencers  *repo.InfluencerRepo
	pulseP       providers.PulseProvider
	embeddingP   providers.EmbeddingProvider
	cacheTTL     time.Duration
	tauPulse     float64
	summaryLimit int
}

// NewChecker builds a Checker. db is the transaction or connection the
// caller's node handler is already running under — Checker issues its
// writes (new recent embedding, influencer stamp) against it rather than
// opening its own transaction, since spec invariant keeps one handler
// invocation inside a single all-or-nothing transaction.
func NewChecker(db repo.DBTX, pulseP providers.PulseProvider, embeddingP providers.EmbeddingProvider, cacheTTL time.Duration, tauPulse float64, summaryLimit int) *Checker {
	return &Checker{
		embeddings:   repo.NewEmbeddingRepo(db),
		influencers:  repo.NewInfluencerRepo(db),
		pulseP:       pulseP,
		embeddingP:   embeddingP,
		cacheTTL:     cacheTTL,
		tauPulse:     tauPulse,
		summaryLimit: summaryLimit,
	}
}

// costFunc records one provider-cost entry and enforces the budget guard;
// node handlers pass a closure bound to their envelope/ledger/budget state.
type costFunc func(provider, operation string, unitCost, quantity float64) error

// Check runs the six-step pulse algorithm against a single candidate.
func (c *Checker) Check(ctx context.Context, tenantID string, cand Candidate, campaignEmbedding []float32, record costFunc) (Result, error) {
	if cached, ok, err := c.checkCache(ctx, tenantID, cand, campaignEmbedding); err != nil {
		return Result{}, err
	} else if ok {
		return cached, nil
	}

	if cand.PrimaryURL == nil || *cand.PrimaryURL == "" {
		return Result{Status: models.PulseStatusInconclusive}, nil
	}

	summaries, err := c.pulseP.FetchRecentSummaries(ctx, *cand.PrimaryURL, c.summaryLimit)
	if recErr := record("pulse_provider", "fetch_summaries", 0.01, 1.0); recErr != nil {
		return Result{}, recErr
	}
	if err != nil || len(summaries) == 0 {
		return Result{Status: models.PulseStatusInconclusive}, nil
	}

	combined := ""
	for i, s := range summaries {
		if i > 0 {
			combined += " "
		}
		combined += s.Summary
	}

	embeddings, err := c.embeddingP.Embed(ctx, []string{combined}, "")
	if recErr := record("embedding_provider", "embed", 0.0001, 1.0); recErr != nil {
		return Result{}, recErr
	}
	if err != nil || len(embeddings) == 0 {
		return Result{Status: models.PulseStatusInconclusive}, nil
	}
	recentVector := embeddings[0]

	now := time.Now().UTC()
	embeddingID, err := c.embeddings.Create(ctx, tenantID, models.EmbeddingKindRecent, "pulse", len(recentVector), 1.0, recentVector)
	if err != nil {
		return Result{}, fmt.Errorf("insert recent embedding: %w", err)
	}
	if _, err := c.influencers.UpdateLastPulseCheckedAt(ctx, tenantID, cand.InfluencerID, now, embeddingID); err != nil {
		return Result{}, fmt.Errorf("stamp last_pulse_checked_at: %w", err)
	}

	similarity, err := providers.CosineSimilarity(campaignEmbedding, recentVector)
	if err != nil {
		return Result{}, fmt.Errorf("compute pulse similarity: %w", err)
	}

	status := models.PulseStatusFail
	if similarity >= c.tauPulse {
		status = models.PulseStatusPass
	}
	return Result{Status: status, Similarity: similarity, RecentEmbeddingID: embeddingID}, nil
}

// checkCache returns a cached pass/fail verdict when last_pulse_checked_at
// is within the TTL and a recent embedding is already on file.
func (c *Checker) checkCache(ctx context.Context, tenantID string, cand Candidate, campaignEmbedding []float32) (Result, bool, error) {
	if cand.LastPulseCheckedAt == nil || cand.RecentEmbeddingID == nil {
		return Result{}, false, nil
	}
	if time.Since(*cand.LastPulseCheckedAt) >= c.cacheTTL {
		return Result{}, false, nil
	}

	recentVector, err := c.embeddings.GetVector(ctx, tenantID, *cand.RecentEmbeddingID)
	if err != nil {
		return Result{}, false, fmt.Errorf("load cached recent vector: %w", err)
	}
	if recentVector == nil {
		return Result{}, false, nil
	}

	similarity, err := providers.CosineSimilarity(campaignEmbedding, recentVector)
	if err != nil {
		return Result{}, false, fmt.Errorf("compute cached pulse similarity: %w", err)
	}

	status := models.PulseStatusFail
	if similarity >= c.tauPulse {
		status = models.PulseStatusPass
	}
	return Result{Status: status, Similarity: similarity, RecentEmbeddingID: *cand.RecentEmbeddingID}, true, nil
}

