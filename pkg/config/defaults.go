package config

// BusConfig controls the Redis Streams event bus: stream/group naming,
// consumer read shape, retry backoff, and idempotency retention.
type BusConfig struct {
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty"`
	RedisDB       int    `yaml:"redis_db"`

	StreamMain string `yaml:"stream_main,omitempty"`
	StreamDLQ  string `yaml:"stream_dlq,omitempty"`
	GroupName  string `yaml:"group_name,omitempty"`

	// BlockMS is how long XREADGROUP blocks waiting for new entries.
	BlockMS int `yaml:"block_ms,omitempty" validate:"omitempty,min=1"`
	// Count is the max number of stream entries read per XREADGROUP call.
	Count int `yaml:"count,omitempty" validate:"omitempty,min=1"`

	MaxRetries         int     `yaml:"max_retries,omitempty" validate:"omitempty,min=0"`
	BackoffBaseSeconds float64 `yaml:"backoff_base_seconds,omitempty" validate:"omitempty,gt=0"`
	BackoffJitterMax   float64 `yaml:"backoff_jitter_max,omitempty" validate:"omitempty,gte=0"`

	IdemTTLSeconds int `yaml:"idem_ttl_seconds,omitempty" validate:"omitempty,min=1"`
}

// DefaultBusConfig returns the system's documented default bus settings.
func DefaultBusConfig() *BusConfig {
	return &BusConfig{
		RedisAddr:          "localhost:6379",
		RedisDB:            0,
		StreamMain:         "metismedia:events",
		StreamDLQ:          "metismedia:events:dlq",
		GroupName:          "metismedia-workers",
		BlockMS:            1000,
		Count:              10,
		MaxRetries:         5,
		BackoffBaseSeconds: 0.5,
		BackoffJitterMax:   0.2,
		IdemTTLSeconds:     86400,
	}
}

// WorkerConfig tunes how many bus workers run in-process and how they
// shut down.
type WorkerConfig struct {
	WorkerCount             int    `yaml:"worker_count,omitempty" validate:"omitempty,min=1"`
	GracefulShutdownTimeout string `yaml:"graceful_shutdown_timeout,omitempty"`
	OrphanDetectionInterval string `yaml:"orphan_detection_interval,omitempty"`
	OrphanThresholdSeconds  int    `yaml:"orphan_threshold_seconds,omitempty"`
}

// DefaultWorkerConfig returns sensible single-process defaults.
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		WorkerCount:             4,
		GracefulShutdownTimeout: "30s",
		OrphanDetectionInterval: "60s",
		OrphanThresholdSeconds:  300,
	}
}

// BudgetConfig holds the per-run spend ceiling and per-provider call caps
// enforced by the budget guard before any effectful dispatch.
type BudgetConfig struct {
	MaxDollars       float64            `yaml:"max_dollars,omitempty" validate:"omitempty,gt=0"`
	MaxProviderCalls map[string]int     `yaml:"max_provider_calls,omitempty"`
	MaxNodeSeconds   map[string]float64 `yaml:"max_node_seconds,omitempty"`
}

// DefaultBudgetConfig returns the original per-run dollar ceiling.
func DefaultBudgetConfig() *BudgetConfig {
	return &BudgetConfig{
		MaxDollars:       5.0,
		MaxProviderCalls: map[string]int{},
		MaxNodeSeconds:   map[string]float64{},
	}
}

// ThresholdConfig holds the similarity/match-score cutoffs node_b uses to
// decide between proceeding, reserving, or skipping a candidate.
type ThresholdConfig struct {
	TauPre             float64 `yaml:"tau_pre,omitempty" validate:"omitempty,gt=0,lte=1"`
	TauCache           float64 `yaml:"tau_cache,omitempty" validate:"omitempty,gt=0,lte=1"`
	PulseSimilarityMin float64 `yaml:"pulse_similarity_min,omitempty" validate:"omitempty,gt=0,lte=1"`
}

// DefaultThresholdConfig returns node B's documented default thresholds.
func DefaultThresholdConfig() *ThresholdConfig {
	return &ThresholdConfig{
		TauPre:             0.85,
		TauCache:           0.90,
		PulseSimilarityMin: 0.85,
	}
}

// Defaults contains system-wide defaults applied when a run doesn't
// specify its own values.
type Defaults struct {
	DesiredCount               int    `yaml:"desired_count,omitempty" validate:"omitempty,min=1,max=100"`
	RiskProfile                string `yaml:"risk_profile,omitempty"`
	ReservationDurationMinutes int    `yaml:"reservation_duration_minutes,omitempty" validate:"omitempty,min=1"`
	PulseSummaryLimit          int    `yaml:"pulse_summary_limit,omitempty" validate:"omitempty,min=1"`
}

// DefaultDefaults returns the built-in application defaults.
func DefaultDefaults() *Defaults {
	return &Defaults{
		DesiredCount:               10,
		RiskProfile:                "default",
		ReservationDurationMinutes: 30,
		PulseSummaryLimit:          3,
	}
}
