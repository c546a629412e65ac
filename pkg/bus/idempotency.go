package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// idemStoreKey builds the key-store entry name for an envelope:
// "idem:{node}:{idempotency_key}".
func idemStoreKey(env Envelope) string {
	return fmt.Sprintf("idem:%s:%s", env.Node, env.IdempotencyKey)
}

// AlreadyProcessed reports whether the envelope's idempotency key has
// already been marked done.
func AlreadyProcessed(ctx context.Context, client *redis.Client, env Envelope) (bool, error) {
	n, err := client.Exists(ctx, idemStoreKey(env)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed records the envelope's idempotency key with the configured
// TTL, so a later replay of the same logical step is gated out.
func MarkProcessed(ctx context.Context, client *redis.Client, env Envelope, ttl time.Duration) error {
	return client.Set(ctx, idemStoreKey(env), "1", ttl).Err()
}
