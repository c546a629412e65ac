// Package stages implements the node A-G event handlers: the orchestration
// graph's actual business logic, wired onto pkg/bus's Handler signature.
// Every handler follows the same repository-write, cost-entry,
// successor-publish shape; node B additionally composes the prefilter,
// scoring, reservation, and pulse-check stages.
package stages

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/config"
	"github.com/metismedia/metismedia/pkg/providers"
)

// defaultPreselectK bounds stage B's safety-prefilter + vector top-K width
// when Env.PreselectK isn't set.
const defaultPreselectK = 200

// Env carries every collaborator a node handler needs: the database, the
// event publisher, the provider implementations, and the threshold/default
// configuration the scorer, the reservation window, and the pulse checker
// pull from.
type Env struct {
	DB         *sql.DB
	Publisher  *bus.Publisher
	Embeddings providers.EmbeddingProvider
	Pulses     providers.PulseProvider
	Thresholds config.ThresholdConfig
	Defaults   config.Defaults

	// PreselectK bounds stage B's safety-prefilter + vector top-K width.
	// Zero means defaultPreselectK.
	PreselectK int
}

// Handlers binds an Env to the bus.Handler signature for each node.
type Handlers struct {
	env Env
}

// NewHandlers builds a Handlers bound to env.
func NewHandlers(env Env) *Handlers {
	if env.PreselectK <= 0 {
		env.PreselectK = defaultPreselectK
	}
	return &Handlers{env: env}
}

// Registry returns the event_name -> Handler map a bus.Worker dispatches
// through.
func (h *Handlers) Registry() bus.Registry {
	return bus.Registry{
		bus.EventBriefFinalized: h.NodeA,
		bus.EventNodeBInput:     h.NodeB,
		bus.EventNodeCInput:     h.NodeC,
		bus.EventNodeDInput:     h.NodeD,
		bus.EventNodeEInput:     h.NodeE,
		bus.EventNodeFInput:     h.NodeF,
		bus.EventNodeGInput:     h.NodeG,
	}
}

// WithNodeTimeout wraps handler with the per-node time limit from
// maxNodeSeconds, keyed by node name. Nodes without a limit run unwrapped.
// Expiry surfaces as an ordinary handler error, so the worker's retry path
// treats it as transient.
func WithNodeTimeout(handler bus.Handler, maxNodeSeconds map[string]float64) bus.Handler {
	if len(maxNodeSeconds) == 0 {
		return handler
	}
	return func(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
		seconds, ok := maxNodeSeconds[string(env.Node)]
		if !ok || seconds <= 0 {
			return handler(ctx, env, deps)
		}

		ctx, cancel := context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- handler(ctx, env, deps) }()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return fmt.Errorf("node %s handler exceeded %.1fs time limit: %w", env.Node, seconds, ctx.Err())
		}
	}
}

// WrapRegistryWithNodeTimeouts applies WithNodeTimeout to every handler in
// the registry, returning a new registry.
func WrapRegistryWithNodeTimeouts(registry bus.Registry, maxNodeSeconds map[string]float64) bus.Registry {
	if len(maxNodeSeconds) == 0 {
		return registry
	}
	wrapped := make(bus.Registry, len(registry))
	for name, handler := range registry {
		wrapped[name] = WithNodeTimeout(handler, maxNodeSeconds)
	}
	return wrapped
}
