package ledger

import (
	"fmt"
	"time"
)

// Budget holds the per-run spend ceiling and optional per-provider call
// caps enforced by Guard before any effectful dispatch.
type Budget struct {
	MaxDollars       float64
	MaxProviderCalls map[string]int
	MaxNodeSeconds   map[string]float64
}

// State tracks current spend against a Budget. Mutation happens in the
// caller, after Guard approves the delta — Guard itself is purely
// functional so it can be reused pre-flight without side effects.
type State struct {
	DollarsSpent  float64
	ProviderCalls map[string]int
	StartedAt     time.Time
}

// NewState returns a freshly initialized budget state for a run.
func NewState() *State {
	return &State{
		ProviderCalls: make(map[string]int),
		StartedAt:     time.Now(),
	}
}

// ExceededLimitType distinguishes which budget dimension failed.
type ExceededLimitType string

const (
	LimitMaxDollars       ExceededLimitType = "max_dollars"
	LimitMaxProviderCalls ExceededLimitType = "max_provider_calls"
)

// BudgetExceeded is a distinguished error kind the bus worker special-cases:
// on this error the run is written to failed without a retry.
type BudgetExceeded struct {
	LimitType ExceededLimitType
	Message   string
}

func (e *BudgetExceeded) Error() string {
	return e.Message
}

// Guard checks whether applying the given deltas to state would exceed
// budget. Node-time caps are accepted but not enforced here; a per-handler
// timeout wrapper enforces those advisorily (see pkg/stages).
func Guard(budget Budget, state *State, costDelta float64, provider string, callsDelta int) error {
	if costDelta < 0 {
		return fmt.Errorf("cost_delta must be >= 0")
	}
	if callsDelta < 0 {
		return fmt.Errorf("calls_delta must be >= 0")
	}

	newDollars := state.DollarsSpent + costDelta
	if newDollars > budget.MaxDollars {
		return &BudgetExceeded{
			LimitType: LimitMaxDollars,
			Message:   fmt.Sprintf("Budget exceeded: %.4f > %.4f max_dollars", newDollars, budget.MaxDollars),
		}
	}

	if provider != "" && callsDelta > 0 {
		if cap, ok := budget.MaxProviderCalls[provider]; ok {
			current := state.ProviderCalls[provider]
			newCalls := current + callsDelta
			if newCalls > cap {
				return &BudgetExceeded{
					LimitType: LimitMaxProviderCalls,
					Message:   fmt.Sprintf("Budget exceeded: provider %s would be at %d > %d calls", provider, newCalls, cap),
				}
			}
		}
	}

	return nil
}

// Apply mutates state by the given deltas. Call only after Guard approves
// the same deltas.
func (s *State) Apply(costDelta float64, provider string, callsDelta int) {
	s.DollarsSpent += costDelta
	if provider != "" && callsDelta > 0 {
		s.ProviderCalls[provider] += callsDelta
	}
}
