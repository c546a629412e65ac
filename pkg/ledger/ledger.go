package ledger

import (
	"log/slog"
	"sync"
)

// Ledger records cost entries. Two implementations: InMemory for tests and
// SlogSink for production.
type Ledger interface {
	Record(entry Entry)
}

// Summarizer is implemented by ledgers that can report per-run aggregates;
// node_g's completion write reads through this when the wired ledger
// supports it. InMemory satisfies it; SlogSink does not, since it only
// emits structured log lines and keeps no queryable state.
type Summarizer interface {
	TotalDollars(runID string) float64
	Summary(runID string) (byNode, byProvider map[string]float64)
}

// InMemory accumulates entries for inspection in tests; TotalDollars and
// Summary provide per-run aggregation over whatever has been recorded.
type InMemory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewInMemory creates an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Record appends an entry.
func (l *InMemory) Record(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a snapshot of every recorded entry.
func (l *InMemory) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// TotalDollars sums every entry's dollars for the given run.
func (l *InMemory) TotalDollars(runID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0.0
	for _, e := range l.entries {
		if e.RunID == runID {
			total += e.Dollars
		}
	}
	return total
}

// Summary returns dollar sums for the given run, grouped by node and by
// provider.
func (l *InMemory) Summary(runID string) (byNode, byProvider map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byNode = make(map[string]float64)
	byProvider = make(map[string]float64)
	for _, e := range l.entries {
		if e.RunID != runID {
			continue
		}
		byNode[e.Node] += e.Dollars
		byProvider[e.Provider] += e.Dollars
	}
	return byNode, byProvider
}

// SlogSink writes one structured log line per cost entry via log/slog, to a
// dedicated "metismedia.cost" logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a production ledger backed by the given logger. A nil
// logger falls back to slog.Default(); either way every line carries a
// logger="metismedia.cost" attribute.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("logger", "metismedia.cost")}
}

// Record emits one structured log line for the entry.
func (s *SlogSink) Record(entry Entry) {
	s.logger.Info("cost entry",
		"occurred_at", entry.OccurredAt,
		"tenant_id", entry.TenantID,
		"trace_id", entry.TraceID,
		"run_id", entry.RunID,
		"node", entry.Node,
		"provider", entry.Provider,
		"operation", entry.Operation,
		"unit_cost", entry.UnitCost,
		"quantity", entry.Quantity,
		"dollars", entry.Dollars,
		"metadata", entry.Metadata,
	)
}
