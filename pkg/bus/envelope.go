// Package bus implements the Redis Streams event bus: envelopes, deterministic
// idempotency keys, a publisher, and a consumer worker pool with retry/DLQ.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/metismedia/metismedia/pkg/models"
)

// Envelope is an immutable record published to the stream. Every field is
// required except Payload and Attempt, which default to empty/zero.
type Envelope struct {
	EventID        uuid.UUID
	OccurredAt     time.Time
	TenantID       uuid.UUID
	Node           models.NodeName
	EventName      string
	Payload        map[string]any
	TraceID        string
	RunID          string
	IdempotencyKey string
	Attempt        int
}

// NewEnvelope builds an envelope with a fresh event_id and occurred_at,
// attempt 0, the way every node handler constructs its successor event.
func NewEnvelope(tenantID uuid.UUID, node models.NodeName, eventName string, payload map[string]any, traceID, runID, idempotencyKey string) Envelope {
	return Envelope{
		EventID:        uuid.New(),
		OccurredAt:     time.Now().UTC(),
		TenantID:       tenantID,
		Node:           node,
		EventName:      eventName,
		Payload:        payload,
		TraceID:        traceID,
		RunID:          runID,
		IdempotencyKey: idempotencyKey,
		Attempt:        0,
	}
}

// withAttempt returns a copy of the envelope with Attempt replaced, used when
// requeueing for retry or moving to the DLQ.
func (e Envelope) withAttempt(attempt int) Envelope {
	e.Attempt = attempt
	return e
}

// AsRedisFields converts the envelope to the string-keyed, string-valued map
// XADD requires.
func (e Envelope) AsRedisFields() (map[string]any, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return map[string]any{
		"event_id":        e.EventID.String(),
		"occurred_at":     e.OccurredAt.Format(time.RFC3339Nano),
		"tenant_id":       e.TenantID.String(),
		"node":            string(e.Node),
		"event_name":      e.EventName,
		"payload":         string(payload),
		"trace_id":        e.TraceID,
		"run_id":          e.RunID,
		"idempotency_key": e.IdempotencyKey,
		"attempt":         fmt.Sprintf("%d", e.Attempt),
	}, nil
}

// DecodeEnvelope decodes a Redis stream message's field map back into an
// Envelope. Fields arrive as strings regardless of how they were written.
func DecodeEnvelope(fields map[string]any) (Envelope, error) {
	str := func(key string) string {
		v, _ := fields[key].(string)
		return v
	}

	nodeStr := str("node")
	if nodeStr == "" {
		return Envelope{}, fmt.Errorf("missing required field: node")
	}

	tenantStr := str("tenant_id")
	if tenantStr == "" {
		return Envelope{}, fmt.Errorf("missing required field: tenant_id")
	}
	tenantID, err := uuid.Parse(tenantStr)
	if err != nil {
		return Envelope{}, fmt.Errorf("invalid tenant_id value %q: %w", tenantStr, err)
	}

	eventIDStr := str("event_id")
	eventID, err := uuid.Parse(eventIDStr)
	if err != nil {
		return Envelope{}, fmt.Errorf("invalid event_id value %q: %w", eventIDStr, err)
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, str("occurred_at"))
	if err != nil {
		return Envelope{}, fmt.Errorf("invalid occurred_at value: %w", err)
	}

	var payload map[string]any
	if raw := str("payload"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return Envelope{}, fmt.Errorf("invalid payload JSON: %w", err)
		}
	}

	attempt := 0
	if raw := str("attempt"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &attempt); err != nil {
			return Envelope{}, fmt.Errorf("invalid attempt value %q: %w", raw, err)
		}
	}

	return Envelope{
		EventID:        eventID,
		OccurredAt:     occurredAt,
		TenantID:       tenantID,
		Node:           models.NodeName(nodeStr),
		EventName:      str("event_name"),
		Payload:        payload,
		TraceID:        str("trace_id"),
		RunID:          str("run_id"),
		IdempotencyKey: str("idempotency_key"),
		Attempt:        attempt,
	}, nil
}
