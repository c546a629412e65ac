package stages

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/ledger"
	"github.com/metismedia/metismedia/pkg/models"
	"github.com/metismedia/metismedia/pkg/repo"
)

// recordCost is the choke point every handler in this package goes through
// to log a provider-cost line, reusing the worker's per-run budget state
// when one was wired into deps.
func recordCost(deps bus.Deps, env bus.Envelope, node models.NodeName, provider, operation string, unitCost, quantity float64) error {
	entry := ledger.NewEntry(env.TenantID.String(), env.TraceID, env.RunID, string(node), provider, operation, unitCost, quantity, nil)

	var budget *ledger.Budget
	if deps.BudgetState != nil {
		b := deps.Budget
		budget = &b
	}
	return ledger.RecordCost(deps.Ledger, budget, deps.BudgetState, entry)
}

// markRunFailed writes a run to the terminal failed status, the action
// every handler takes when its upstream context is missing or corrupt.
func markRunFailed(ctx context.Context, db *sql.DB, tenantID, runID, message string) error {
	_, err := repo.NewRunRepo(db).UpdateStatus(ctx, tenantID, runID, models.RunStatusFailed, message, nil)
	if err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}
	return nil
}

// completeWithZeroTargets writes a run to completed with an empty result,
// the outcome for every early-exit branch that found nothing to pursue.
func completeWithZeroTargets(ctx context.Context, db *sql.DB, tenantID, runID, note string) error {
	result := map[string]any{
		"target_cards_count": 0,
		"drafts_count":       0,
		"total_cost_dollars": 0.0,
		"cost_summary":       map[string]any{},
		"notes":              []string{note},
	}
	_, err := repo.NewRunRepo(db).UpdateStatus(ctx, tenantID, runID, models.RunStatusCompleted, "", result)
	if err != nil {
		return fmt.Errorf("complete run with zero targets: %w", err)
	}
	return nil
}

// publishSuccessor builds and publishes the next event in the graph with a
// deterministic idempotency key, the pattern every pass-through handler
// ends on.
func publishSuccessor(ctx context.Context, pub *bus.Publisher, env bus.Envelope, node models.NodeName, eventName string, payload map[string]any, step string) error {
	next := bus.NewEnvelope(env.TenantID, node, eventName, payload, env.TraceID, env.RunID,
		bus.IdempotencyKey(env.TenantID.String(), env.RunID, string(node), eventName, step))
	if _, err := pub.Publish(ctx, next); err != nil {
		return fmt.Errorf("publish %s: %w", eventName, err)
	}
	return nil
}

// payloadString reads a string field from an envelope payload, returning
// "" if absent or of the wrong type.
func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

// payloadInt reads an integer field from an envelope payload. Numbers
// decode from JSON as float64, so that's the only numeric type handled
// beyond a literal int.
func payloadInt(payload map[string]any, key string, fallback int) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}
