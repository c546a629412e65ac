package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metismedia/metismedia/pkg/ledger"
	"github.com/metismedia/metismedia/pkg/models"
)

type fakeRunFailer struct {
	calledTenant string
	calledRun    string
	calledMsg    string
	called       bool
}

func (f *fakeRunFailer) MarkFailed(ctx context.Context, tenantID, runID, errMsg string) error {
	f.called = true
	f.calledTenant = tenantID
	f.calledRun = runID
	f.calledMsg = errMsg
	return nil
}

func fastOpts() WorkerOptions {
	return WorkerOptions{
		BlockMS:       100,
		MaxRetries:    3,
		BackoffBase:   0.001,
		BackoffJitter: 0.001,
		IdemTTL:       time.Minute,
	}
}

func TestWorkerProcessesAndMarksIdempotent(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	pub := NewPublisher(client, StreamMain, StreamDLQ)
	failer := &fakeRunFailer{}
	w := NewWorker(client, pub, failer, "test-worker-1", fastOpts())

	tenantID := uuid.New()
	env := NewEnvelope(tenantID, models.NodeA, EventBriefFinalized, nil, "trace", "run-1", "idem-ok")
	_, err := pub.Publish(ctx, env)
	require.NoError(t, err)

	var invoked int
	registry := Registry{
		EventBriefFinalized: func(ctx context.Context, env Envelope, deps Deps) error {
			invoked++
			return nil
		},
	}

	processed, err := w.Run(ctx, registry, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, invoked)

	already, err := AlreadyProcessed(ctx, client, env)
	require.NoError(t, err)
	assert.True(t, already)
}

func TestWorkerSkipsAlreadyProcessed(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	pub := NewPublisher(client, StreamMain, StreamDLQ)
	w := NewWorker(client, pub, nil, "test-worker-1", fastOpts())

	tenantID := uuid.New()
	env := NewEnvelope(tenantID, models.NodeA, EventBriefFinalized, nil, "trace", "run-1", "idem-dup")
	require.NoError(t, MarkProcessed(ctx, client, env, time.Minute))
	_, err := pub.Publish(ctx, env)
	require.NoError(t, err)

	var invoked int
	registry := Registry{
		EventBriefFinalized: func(ctx context.Context, env Envelope, deps Deps) error {
			invoked++
			return nil
		},
	}

	processed, err := w.Run(ctx, registry, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 0, invoked, "handler must not run for an already-processed idempotency key")
}

func TestWorkerUnknownEventAcksAndDrops(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	pub := NewPublisher(client, StreamMain, StreamDLQ)
	w := NewWorker(client, pub, nil, "test-worker-1", fastOpts())

	env := NewEnvelope(uuid.New(), models.NodeA, "no.such.handler", nil, "trace", "run-1", "idem-unknown")
	_, err := pub.Publish(ctx, env)
	require.NoError(t, err)

	processed, err := w.Run(ctx, Registry{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestWorkerRetriesThenRepublishesWithBumpedAttempt(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	pub := NewPublisher(client, StreamMain, StreamDLQ)
	w := NewWorker(client, pub, nil, "test-worker-1", fastOpts())

	env := NewEnvelope(uuid.New(), models.NodeB, EventNodeBInput, nil, "trace", "run-1", "idem-retry")
	_, err := pub.Publish(ctx, env)
	require.NoError(t, err)

	registry := Registry{
		EventNodeBInput: func(ctx context.Context, env Envelope, deps Deps) error {
			return errors.New("transient failure")
		},
	}

	processed, err := w.Run(ctx, registry, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	// XACK does not remove the original entry, so the stream holds the
	// consumed original plus the republished retry.
	entries, err := client.XRange(ctx, StreamMain, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2, "failed message must be republished to the main stream")
	assert.Equal(t, "0", entries[0].Values["attempt"])
	assert.Equal(t, "1", entries[1].Values["attempt"])
	assert.Equal(t, entries[0].Values["event_id"], entries[1].Values["event_id"])
	assert.Equal(t, entries[0].Values["idempotency_key"], entries[1].Values["idempotency_key"])
}

func TestWorkerMovesToDLQAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	pub := NewPublisher(client, StreamMain, StreamDLQ)
	opts := fastOpts()
	opts.MaxRetries = 1
	w := NewWorker(client, pub, nil, "test-worker-1", opts)

	env := NewEnvelope(uuid.New(), models.NodeB, EventNodeBInput, nil, "trace", "run-1", "idem-dlq").withAttempt(0)
	_, err := pub.Publish(ctx, env)
	require.NoError(t, err)

	registry := Registry{
		EventNodeBInput: func(ctx context.Context, env Envelope, deps Deps) error {
			return errors.New("permanent failure")
		},
	}

	processed, err := w.Run(ctx, registry, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	dlqEntries, err := client.XRange(ctx, StreamDLQ, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dlqEntries, 1)
	assert.Equal(t, "permanent failure", dlqEntries[0].Values["error"])

	mainEntries, err := client.XRange(ctx, StreamMain, "-", "+").Result()
	require.NoError(t, err)
	assert.Len(t, mainEntries, 1, "exhausted envelope must not be republished to the main stream")
}

func TestWorkerBudgetExceededFailsRunWithoutRetry(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	pub := NewPublisher(client, StreamMain, StreamDLQ)
	failer := &fakeRunFailer{}
	budget := ledger.Budget{MaxDollars: 1.0}
	opts := fastOpts()
	opts.Budget = &budget
	w := NewWorker(client, pub, failer, "test-worker-1", opts)

	tenantID := uuid.New()
	env := NewEnvelope(tenantID, models.NodeB, EventNodeBInput, nil, "trace", "run-42", "idem-budget")
	_, err := pub.Publish(ctx, env)
	require.NoError(t, err)

	registry := Registry{
		EventNodeBInput: func(ctx context.Context, env Envelope, deps Deps) error {
			return ledger.Guard(deps.Budget, deps.BudgetState, 2.0, "", 0)
		},
	}

	processed, err := w.Run(ctx, registry, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	assert.True(t, failer.called)
	assert.Equal(t, tenantID.String(), failer.calledTenant)
	assert.Equal(t, "run-42", failer.calledRun)

	mainEntries, err := client.XRange(ctx, StreamMain, "-", "+").Result()
	require.NoError(t, err)
	assert.Len(t, mainEntries, 1, "budget exceeded must not republish a retry")
}
