package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/metismedia/metismedia/pkg/ledger"
)

// Deps carries the optional extras a handler may use: a cost ledger and the
// per-run budget state the worker lazily creates and keys by
// (tenant_id, run_id). Ledger is nil when the worker was built without one;
// BudgetState is nil when the worker was built without a Budget.
type Deps struct {
	Ledger      ledger.Ledger
	Budget      ledger.Budget
	BudgetState *ledger.State
}

// Handler processes one envelope. Returning a *ledger.BudgetExceeded moves
// the run straight to failed with no retry; any other error is retried with
// backoff up to MaxRetries, then sent to the DLQ.
type Handler func(ctx context.Context, env Envelope, deps Deps) error

// Registry maps event_name to the handler responsible for it.
type Registry map[string]Handler

// RunFailer marks a run failed without retry, used on budget exhaustion.
// Satisfied by pkg/repo.RunRepo; kept as a narrow interface here so pkg/bus
// does not depend on pkg/repo or the database driver.
type RunFailer interface {
	MarkFailed(ctx context.Context, tenantID, runID, errMsg string) error
}

// backoffBaseSeconds and backoffJitterMax mirror config.DefaultBusConfig's
// defaults; Worker.Backoff overrides them per instance.
const (
	backoffBaseSeconds = 0.5
	backoffJitterMax   = 0.2
)

// CalculateBackoff returns the exponential-with-jitter delay before retrying
// the given 1-based attempt number.
func CalculateBackoff(attempt int, base, jitterMax float64) time.Duration {
	exponential := base * float64(uint(1)<<uint(attempt-1))
	jitter := rand.Float64() * jitterMax
	return time.Duration((exponential + jitter) * float64(time.Second))
}

// Worker is a single Redis Streams consumer. A Pool runs several of these
// concurrently under one consumer group.
type Worker struct {
	redis         *redis.Client
	publisher     *Publisher
	runFailer     RunFailer
	groupName     string
	consumerName  string
	stream        string
	blockMS       int
	count         int64
	maxRetries    int
	idemTTL       time.Duration
	backoffBase   float64
	backoffJitter float64

	budget     *ledger.Budget
	costLedger ledger.Ledger

	mu           sync.Mutex
	budgetStates map[string]*ledger.State

	stopCh   chan struct{}
	stopOnce sync.Once
}

// WorkerOptions configures a Worker beyond its required collaborators.
type WorkerOptions struct {
	Stream        string
	GroupName     string
	BlockMS       int
	Count         int64
	MaxRetries    int
	IdemTTL       time.Duration
	BackoffBase   float64
	BackoffJitter float64
	Budget        *ledger.Budget
	Ledger        ledger.Ledger
}

// NewWorker builds a worker bound to consumerName within opts.GroupName.
func NewWorker(client *redis.Client, publisher *Publisher, runFailer RunFailer, consumerName string, opts WorkerOptions) *Worker {
	stream := opts.Stream
	if stream == "" {
		stream = StreamMain
	}
	group := opts.GroupName
	if group == "" {
		group = GroupName
	}
	blockMS := opts.BlockMS
	if blockMS == 0 {
		blockMS = 1000
	}
	count := opts.Count
	if count == 0 {
		count = 10
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	idemTTL := opts.IdemTTL
	if idemTTL == 0 {
		idemTTL = 24 * time.Hour
	}
	base := opts.BackoffBase
	if base == 0 {
		base = backoffBaseSeconds
	}
	jitter := opts.BackoffJitter
	if jitter == 0 {
		jitter = backoffJitterMax
	}

	return &Worker{
		redis:         client,
		publisher:     publisher,
		runFailer:     runFailer,
		groupName:     group,
		consumerName:  consumerName,
		stream:        stream,
		blockMS:       blockMS,
		count:         count,
		maxRetries:    maxRetries,
		idemTTL:       idemTTL,
		backoffBase:   base,
		backoffJitter: jitter,
		budget:        opts.Budget,
		costLedger:    opts.Ledger,
		budgetStates:  make(map[string]*ledger.State),
		stopCh:        make(chan struct{}),
	}
}

// EnsureGroup creates the consumer group at the start of the stream's history
// ("0"); BUSYGROUP on a prior creation is not an error.
func (w *Worker) EnsureGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, w.stream, w.groupName, "0").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Stop requests the run loop to exit after its current blocking read.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Run processes messages from the stream until Stop is called or, if
// stopAfter is positive, until that many messages have been processed.
// Returns the number of messages processed.
func (w *Worker) Run(ctx context.Context, registry Registry, stopAfter int) (int, error) {
	if err := w.EnsureGroup(ctx); err != nil {
		return 0, err
	}

	processed := 0
	for {
		select {
		case <-w.stopCh:
			return processed, nil
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		if stopAfter > 0 && processed >= stopAfter {
			return processed, nil
		}

		streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.groupName,
			Consumer: w.consumerName,
			Streams:  []string{w.stream, ">"},
			Count:    w.count,
			Block:    time.Duration(w.blockMS) * time.Millisecond,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || strings.Contains(err.Error(), "i/o timeout") {
				continue
			}
			return processed, fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := w.processMessage(ctx, msg, registry); err != nil {
					// Left unacked: the message stays pending in the
					// consumer group and is redelivered rather than lost.
					slog.Error("error processing message, leaving unacked", "message_id", msg.ID, "error", err)
				}
				processed++
			}
		}
	}
}

func (w *Worker) budgetStateFor(tenantID, runID string) *ledger.State {
	key := tenantID + ":" + runID
	w.mu.Lock()
	defer w.mu.Unlock()
	state, ok := w.budgetStates[key]
	if !ok {
		state = ledger.NewState()
		w.budgetStates[key] = state
	}
	return state
}

func (w *Worker) processMessage(ctx context.Context, msg redis.XMessage, registry Registry) error {
	env, err := DecodeEnvelope(msg.Values)
	if err != nil {
		slog.Error("failed to decode envelope, dropping", "message_id", msg.ID, "error", err)
		w.redis.XAck(ctx, w.stream, w.groupName, msg.ID)
		return nil
	}

	already, err := AlreadyProcessed(ctx, w.redis, env)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		slog.Debug("skipping already processed event", "idempotency_key", env.IdempotencyKey)
		w.redis.XAck(ctx, w.stream, w.groupName, msg.ID)
		return nil
	}

	handler, ok := registry[env.EventName]
	if !ok {
		slog.Warn("no handler for event", "event_name", env.EventName)
		w.redis.XAck(ctx, w.stream, w.groupName, msg.ID)
		return nil
	}

	deps := Deps{Ledger: w.costLedger}
	if w.budget != nil {
		deps.Budget = *w.budget
		deps.BudgetState = w.budgetStateFor(env.TenantID.String(), env.RunID)
	}

	handlerErr := handler(ctx, env, deps)
	if handlerErr == nil {
		if err := MarkProcessed(ctx, w.redis, env, w.idemTTL); err != nil {
			return fmt.Errorf("mark processed: %w", err)
		}
		w.redis.XAck(ctx, w.stream, w.groupName, msg.ID)
		return nil
	}

	var exceeded *ledger.BudgetExceeded
	if errors.As(handlerErr, &exceeded) {
		slog.Warn("budget exceeded, failing run", "run_id", env.RunID, "error", handlerErr)
		if w.runFailer != nil {
			if err := w.runFailer.MarkFailed(ctx, env.TenantID.String(), env.RunID, handlerErr.Error()); err != nil {
				slog.Error("failed to mark run failed after budget exceeded", "run_id", env.RunID, "error", err)
			}
		}
		w.redis.XAck(ctx, w.stream, w.groupName, msg.ID)
		return nil
	}

	attempt := env.Attempt + 1
	if attempt < w.maxRetries {
		backoff := CalculateBackoff(attempt, w.backoffBase, w.backoffJitter)
		slog.Warn("handler failed, retrying", "attempt", attempt, "max_retries", w.maxRetries, "backoff", backoff, "error", handlerErr)
		time.Sleep(backoff)

		retry := env.withAttempt(attempt)
		if _, err := w.publisher.Publish(ctx, retry); err != nil {
			return fmt.Errorf("republish retry: %w", err)
		}
		w.redis.XAck(ctx, w.stream, w.groupName, msg.ID)
		return nil
	}

	slog.Error("max retries exceeded, moving to DLQ", "event_id", env.EventID, "error", handlerErr)
	dlq := env.withAttempt(attempt)
	if _, err := w.publisher.PublishDLQ(ctx, dlq, handlerErr.Error()); err != nil {
		return fmt.Errorf("publish dlq: %w", err)
	}
	w.redis.XAck(ctx, w.stream, w.groupName, msg.ID)
	return nil
}
