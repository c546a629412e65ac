package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pool runs several Workers concurrently against the same consumer group,
// each under a distinct consumer name, and shuts them down gracefully.
type Pool struct {
	podID           string
	workers         []*Worker
	registry        Registry
	shutdownTimeout time.Duration
	wg              sync.WaitGroup
	started         bool
}

// NewPool builds a pool of workerCount workers sharing one Redis client,
// publisher, and registry. Consumer names are "{podID}-worker-{i}".
func NewPool(client *redis.Client, publisher *Publisher, runFailer RunFailer, podID string, workerCount int, registry Registry, shutdownTimeout time.Duration, opts WorkerOptions) *Pool {
	workers := make([]*Worker, 0, workerCount)
	for i := 0; i < workerCount; i++ {
		consumerName := fmt.Sprintf("%s-worker-%d", podID, i)
		workers = append(workers, NewWorker(client, publisher, runFailer, consumerName, opts))
	}
	return &Pool{
		podID:           podID,
		workers:         workers,
		registry:        registry,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start launches every worker's run loop in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return
	}
	p.started = true

	slog.Info("starting bus worker pool", "pod_id", p.podID, "worker_count", len(p.workers))
	for _, w := range p.workers {
		worker := w
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if _, err := worker.Run(ctx, p.registry, 0); err != nil {
				slog.Error("worker run loop exited with error", "error", err)
			}
		}()
	}
}

// Stop signals every worker to stop after its current batch and waits,
// up to shutdownTimeout, for all of them to drain.
func (p *Pool) Stop() {
	slog.Info("stopping bus worker pool gracefully", "pod_id", p.podID)
	for _, w := range p.workers {
		w.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("bus worker pool stopped gracefully")
	case <-time.After(p.shutdownTimeout):
		slog.Warn("bus worker pool shutdown timed out, workers may still be draining", "timeout", p.shutdownTimeout)
	}
}
