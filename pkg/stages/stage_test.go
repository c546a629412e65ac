package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metismedia/metismedia/pkg/bus"
	"github.com/metismedia/metismedia/pkg/models"
)

func TestWithNodeTimeoutPassesThroughWithoutLimit(t *testing.T) {
	handler := func(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
		return errors.New("underlying")
	}

	wrapped := WithNodeTimeout(handler, map[string]float64{"C": 1.0})
	env := bus.NewEnvelope(uuid.New(), models.NodeB, bus.EventNodeBInput, nil, "t", "r", "k")

	err := wrapped(context.Background(), env, bus.Deps{})
	assert.EqualError(t, err, "underlying")
}

func TestWithNodeTimeoutExpiresAsTransientError(t *testing.T) {
	handler := func(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}

	wrapped := WithNodeTimeout(handler, map[string]float64{"B": 0.05})
	env := bus.NewEnvelope(uuid.New(), models.NodeB, bus.EventNodeBInput, nil, "t", "r", "k")

	err := wrapped(context.Background(), env, bus.Deps{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithNodeTimeoutFastHandlerSucceeds(t *testing.T) {
	handler := func(ctx context.Context, env bus.Envelope, deps bus.Deps) error {
		return nil
	}

	wrapped := WithNodeTimeout(handler, map[string]float64{"B": 1.0})
	env := bus.NewEnvelope(uuid.New(), models.NodeB, bus.EventNodeBInput, nil, "t", "r", "k")

	require.NoError(t, wrapped(context.Background(), env, bus.Deps{}))
}

func TestWrapRegistryWithNodeTimeoutsEmptyMapReturnsSame(t *testing.T) {
	registry := bus.Registry{
		bus.EventNodeBInput: func(ctx context.Context, env bus.Envelope, deps bus.Deps) error { return nil },
	}
	assert.Len(t, WrapRegistryWithNodeTimeouts(registry, nil), 1)
}
