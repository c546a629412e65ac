package ledger

import (
	"math"
	"time"
)

// ComputeCost rounds unit_cost*quantity to six decimal places, the money
// rounding discipline every cost entry in the ledger uses.
func ComputeCost(unitCost, quantity float64) float64 {
	const scale = 1e6
	return math.Round(unitCost*quantity*scale) / scale
}

// Entry is a single cost line: one provider operation, attributed to a
// tenant/run/node/provider tuple.
type Entry struct {
	OccurredAt time.Time
	TenantID   string
	TraceID    string
	RunID      string
	Node       string
	Provider   string
	Operation  string
	UnitCost   float64
	Quantity   float64
	Dollars    float64
	Metadata   map[string]any
}

// NewEntry builds an Entry with Dollars computed via ComputeCost, the way
// every node handler records a cost line after a provider call.
func NewEntry(tenantID, traceID, runID, node, provider, operation string, unitCost, quantity float64, metadata map[string]any) Entry {
	return Entry{
		OccurredAt: time.Now().UTC(),
		TenantID:   tenantID,
		TraceID:    traceID,
		RunID:      runID,
		Node:       node,
		Provider:   provider,
		Operation:  operation,
		UnitCost:   unitCost,
		Quantity:   quantity,
		Dollars:    ComputeCost(unitCost, quantity),
		Metadata:   metadata,
	}
}
