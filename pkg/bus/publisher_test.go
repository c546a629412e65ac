package bus

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/metismedia/metismedia/pkg/models"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestPublisherPublish(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	pub := NewPublisher(client, StreamMain, StreamDLQ)

	env := NewEnvelope(uuid.New(), models.NodeA, EventBriefFinalized, map[string]any{"k": "v"}, "trace", "run-1", "idem-1")
	id, err := pub.Publish(ctx, env)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := client.XRange(ctx, StreamMain, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "idem-1", entries[0].Values["idempotency_key"])
}

func TestPublisherPublishDLQ(t *testing.T) {
	ctx := context.Background()
	client := newTestRedis(t)
	pub := NewPublisher(client, StreamMain, StreamDLQ)

	env := NewEnvelope(uuid.New(), models.NodeB, EventNodeBInput, nil, "trace", "run-1", "idem-2")
	_, err := pub.PublishDLQ(ctx, env, "handler exploded")
	require.NoError(t, err)

	entries, err := client.XRange(ctx, StreamDLQ, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "handler exploded", entries[0].Values["error"])
	require.Equal(t, "max_retries_exceeded", entries[0].Values["dlq_reason"])
}
