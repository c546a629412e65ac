package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCost(t *testing.T) {
	assert.Equal(t, 0.000123, ComputeCost(0.000041, 3))
	assert.Equal(t, 0.0, ComputeCost(0, 100))
}

func TestInMemoryTotalDollars(t *testing.T) {
	l := NewInMemory()
	l.Record(NewEntry("t1", "trace", "run-1", "node_b", "embedding", "embed", 0.01, 10, nil))
	l.Record(NewEntry("t1", "trace", "run-1", "node_c", "pulse", "fetch", 0.02, 1, nil))
	l.Record(NewEntry("t1", "trace", "run-2", "node_b", "embedding", "embed", 1.0, 1, nil))

	assert.InDelta(t, 0.12, l.TotalDollars("run-1"), 1e-9)
	assert.InDelta(t, 1.0, l.TotalDollars("run-2"), 1e-9)
	assert.Equal(t, 0.0, l.TotalDollars("missing"))
}

func TestInMemorySummary(t *testing.T) {
	l := NewInMemory()
	l.Record(NewEntry("t1", "trace", "run-1", "node_b", "embedding", "embed", 0.01, 10, nil))
	l.Record(NewEntry("t1", "trace", "run-1", "node_c", "embedding", "embed", 0.01, 10, nil))

	byNode, byProvider := l.Summary("run-1")
	assert.InDelta(t, 0.1, byNode["node_b"], 1e-9)
	assert.InDelta(t, 0.1, byNode["node_c"], 1e-9)
	assert.InDelta(t, 0.2, byProvider["embedding"], 1e-9)
}

func TestSlogSinkDoesNotPanic(t *testing.T) {
	sink := NewSlogSink(nil)
	assert.NotPanics(t, func() {
		sink.Record(NewEntry("t1", "trace", "run-1", "node_b", "embedding", "embed", 0.01, 10, map[string]any{"k": "v"}))
	})
}
