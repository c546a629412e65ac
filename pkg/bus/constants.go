package bus

import "fmt"

// Stream and consumer group names. Overridable via config.BusConfig; these
// mirror config.DefaultBusConfig's values and are used as test defaults.
const (
	StreamMain = "metismedia:events"
	StreamDLQ  = "metismedia:events:dlq"
	GroupName  = "metismedia-workers"
)

// Event name constants used across node handlers.
const (
	EventBriefFinalized   = "node_a.brief_finalized"
	EventNodeBInput       = "node_b.input"
	EventDirectiveEmitted = "node_b.directive_emitted"
	EventDiscoveryNeeded  = "node_c.discovery_needed"
	EventNodeCInput       = "node_c.input"
	EventNodeDInput       = "node_d.input"
	EventNodeEInput       = "node_e.input"
	EventNodeFInput       = "node_f.input"
	EventNodeGInput       = "node_g.input"
)

// IdempotencyKey builds the deterministic dedup key every published event
// carries. Format: "{tenant_id}:{run_id}:{node}:{event_name}:{step}". A
// replay of the same logical step reproduces the same key, so the worker's
// pre-dispatch gate blocks duplicate effects.
func IdempotencyKey(tenantID, runID, node, eventName, step string) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", tenantID, runID, node, eventName, step)
}
