// Package orchestrator exposes the two operations an outside caller uses to
// drive a campaign through the node graph: StartRun kicks it off, and
// AwaitCompletion blocks until it reaches a terminal status. Everything in
// between happens through pkg/bus and pkg/stages.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/repo"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultTimeout      = 60 * time.Second
)

// DossierResult is what a caller gets back from AwaitCompletion: the run's
// terminal outcome plus whatever node_g tallied into result_json.
type DossierResult struct {
	RunID            string
	CampaignID       string
	TenantID         string
	TraceID          string
	Status           models.RunStatus
	TargetCardsCount int
	DraftsCount      int
	TotalCostDollars float64
	CostSummary      map[string]any
	Notes            []string
	CompletedAt      *time.Time
	ErrorMessage     string
}

// Orchestrator wires a run through the node graph: create the run/campaign
// rows, publish the first event, and let the bus workers carry it forward.
type Orchestrator struct {
	db        *sql.DB
	publisher *bus.Publisher

	pollInterval time.Duration
	timeout      time.Duration
}

// New builds an Orchestrator. pollInterval/timeout default to
// defaultPollInterval/defaultTimeout when zero.
func New(db *sql.DB, publisher *bus.Publisher, pollInterval, timeout time.Duration) *Orchestrator {
	if db == nil {
		panic("orchestrator.New: db must not be nil")
	}
	if publisher == nil {
		panic("orchestrator.New: publisher must not be nil")
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Orchestrator{db: db, publisher: publisher, pollInterval: pollInterval, timeout: timeout}
}

// StartRun creates the run and campaign rows for a finalized brief and
// publishes node_a.brief_finalized, returning the new run_id.
func (o *Orchestrator) StartRun(ctx context.Context, tenantID uuid.UUID, brief models.Brief) (string, error) {
	traceID := uuid.New().String()
	tenantIDStr := tenantID.String()

	runID, err := repo.NewRunRepo(o.db).Create(ctx, tenantIDStr, traceID, nil, models.RunStatusRunning)
	if err != nil {
		return "", fmt.Errorf("start run: create run: %w", err)
	}

	campaignID, err := repo.NewCampaignRepo(o.db).Create(ctx, tenantIDStr, traceID, runID, brief)
	if err != nil {
		return "", fmt.Errorf("start run: create campaign: %w", err)
	}

	if _, err := repo.NewRunRepo(o.db).LinkCampaign(ctx, tenantIDStr, runID, campaignID); err != nil {
		return "", fmt.Errorf("start run: link campaign: %w", err)
	}

	env := bus.NewEnvelope(tenantID, models.NodeA, bus.EventBriefFinalized,
		map[string]any{"campaign_id": campaignID, "brief": brief}, traceID, runID,
		bus.IdempotencyKey(tenantIDStr, runID, string(models.NodeA), bus.EventBriefFinalized, "brief_finalized"))

	if _, err := o.publisher.Publish(ctx, env); err != nil {
		return "", fmt.Errorf("start run: publish brief_finalized: %w", err)
	}

	return runID, nil
}

// AwaitCompletion polls the run row until it reaches a terminal status or
// the timeout elapses, in which case it synthesizes a failed result rather
// than blocking the caller forever.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, tenantID, runID string) (DossierResult, error) {
	runRepo := repo.NewRunRepo(o.db)
	deadline := time.Now().Add(o.timeout)

	for {
		run, err := runRepo.GetByID(ctx, tenantID, runID)
		if err != nil {
			return DossierResult{}, fmt.Errorf("await completion: load run: %w", err)
		}
		if run == nil {
			return DossierResult{}, fmt.Errorf("await completion: run %s not found", runID)
		}

		if run.Status == models.RunStatusCompleted || run.Status == models.RunStatusFailed {
			return dossierFromRun(run), nil
		}

		if time.Now().After(deadline) {
			return DossierResult{
				RunID:        runID,
				TenantID:     tenantID,
				CampaignID:   run.CampaignID,
				TraceID:      run.TraceID,
				Status:       models.RunStatusFailed,
				ErrorMessage: "await_completion timeout",
			}, nil
		}

		select {
		case <-ctx.Done():
			return DossierResult{}, ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}
}

func dossierFromRun(run *models.Run) DossierResult {
	result := DossierResult{
		RunID:        run.ID,
		CampaignID:   run.CampaignID,
		TenantID:     run.TenantID,
		TraceID:      run.TraceID,
		Status:       run.Status,
		CompletedAt:  run.CompletedAt,
		ErrorMessage: run.ErrorMessage,
	}

	if run.ResultJSON == nil {
		return result
	}
	if v, ok := run.ResultJSON["target_cards_count"].(float64); ok {
		result.TargetCardsCount = int(v)
	}
	if v, ok := run.ResultJSON["drafts_count"].(float64); ok {
		result.DraftsCount = int(v)
	}
	if v, ok := run.ResultJSON["total_cost_dollars"].(float64); ok {
		result.TotalCostDollars = v
	}
	if v, ok := run.ResultJSON["cost_summary"].(map[string]any); ok {
		result.CostSummary = v
	}
	if v, ok := run.ResultJSON["notes"].([]any); ok {
		notes := make([]string, 0, len(v))
		for _, n := range v {
			if s, ok := n.(string); ok {
				notes = append(notes, s)
			}
		}
		result.Notes = notes
	}
	return result
}
