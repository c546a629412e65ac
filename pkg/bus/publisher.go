package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes envelopes to the main stream and, on retry exhaustion,
// to the dead-letter stream.
type Publisher struct {
	redis      *redis.Client
	streamMain string
	streamDLQ  string
}

// NewPublisher builds a Publisher against the given stream names.
func NewPublisher(client *redis.Client, streamMain, streamDLQ string) *Publisher {
	return &Publisher{redis: client, streamMain: streamMain, streamDLQ: streamDLQ}
}

// Publish writes the envelope to the main stream and returns the assigned
// Redis message ID.
func (p *Publisher) Publish(ctx context.Context, env Envelope) (string, error) {
	fields, err := env.AsRedisFields()
	if err != nil {
		return "", err
	}
	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamMain,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.streamMain, err)
	}
	return id, nil
}

// PublishDLQ writes the envelope, annotated with the failure reason, to the
// dead-letter stream.
func (p *Publisher) PublishDLQ(ctx context.Context, env Envelope, errMsg string) (string, error) {
	fields, err := env.AsRedisFields()
	if err != nil {
		return "", err
	}
	fields["error"] = errMsg
	fields["dlq_reason"] = "max_retries_exceeded"
	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.streamDLQ,
		Values: fields,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.streamDLQ, err)
	}
	return id, nil
}
