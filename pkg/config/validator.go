package config

import "fmt"

// Validator runs structural checks across a loaded Config that are easier
// to express as plain Go than as struct tags (cross-field relationships,
// per-entry map checks).
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator bound to the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every validation step in order, wrapping each failure
// with the section it came from.
func (v *Validator) ValidateAll() error {
	if err := v.validateBus(); err != nil {
		return fmt.Errorf("bus validation failed: %w", err)
	}
	if err := v.validateWorker(); err != nil {
		return fmt.Errorf("worker validation failed: %w", err)
	}
	if err := v.validateBudget(); err != nil {
		return fmt.Errorf("budget validation failed: %w", err)
	}
	if err := v.validateThresholds(); err != nil {
		return fmt.Errorf("thresholds validation failed: %w", err)
	}
	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateBus() error {
	b := v.cfg.Bus
	if b.RedisAddr == "" {
		return NewValidationError("bus", "redis_addr", ErrMissingRequiredField)
	}
	if b.StreamMain == "" || b.StreamDLQ == "" {
		return NewValidationError("bus", "stream_main/stream_dlq", ErrMissingRequiredField)
	}
	if b.StreamMain == b.StreamDLQ {
		return NewValidationError("bus", "stream_dlq", fmt.Errorf("%w: must differ from stream_main", ErrInvalidValue))
	}
	if b.GroupName == "" {
		return NewValidationError("bus", "group_name", ErrMissingRequiredField)
	}
	if b.BlockMS <= 0 {
		return NewValidationError("bus", "block_ms", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if b.Count <= 0 {
		return NewValidationError("bus", "count", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if b.MaxRetries < 0 {
		return NewValidationError("bus", "max_retries", fmt.Errorf("%w: must be non-negative", ErrInvalidValue))
	}
	if b.BackoffBaseSeconds <= 0 {
		return NewValidationError("bus", "backoff_base_seconds", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if b.BackoffJitterMax < 0 {
		return NewValidationError("bus", "backoff_jitter_max", fmt.Errorf("%w: must be non-negative", ErrInvalidValue))
	}
	if b.IdemTTLSeconds <= 0 {
		return NewValidationError("bus", "idem_ttl_seconds", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateWorker() error {
	w := v.cfg.Worker
	if w.WorkerCount < 1 {
		return NewValidationError("worker", "worker_count", fmt.Errorf("%w: must be at least 1", ErrInvalidValue))
	}
	if w.GracefulShutdownTimeout == "" {
		return NewValidationError("worker", "graceful_shutdown_timeout", ErrMissingRequiredField)
	}
	if w.OrphanThresholdSeconds <= 0 {
		return NewValidationError("worker", "orphan_threshold_seconds", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateBudget() error {
	b := v.cfg.Budget
	if b.MaxDollars <= 0 {
		return NewValidationError("budget", "max_dollars", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	for provider, cap := range b.MaxProviderCalls {
		if cap < 0 {
			return NewValidationError("budget", "max_provider_calls."+provider, fmt.Errorf("%w: must be non-negative", ErrInvalidValue))
		}
	}
	for node, secs := range b.MaxNodeSeconds {
		if secs < 0 {
			return NewValidationError("budget", "max_node_seconds."+node, fmt.Errorf("%w: must be non-negative", ErrInvalidValue))
		}
	}
	return nil
}

func (v *Validator) validateThresholds() error {
	t := v.cfg.Thresholds
	for field, val := range map[string]float64{
		"tau_pre":              t.TauPre,
		"tau_cache":            t.TauCache,
		"pulse_similarity_min": t.PulseSimilarityMin,
	} {
		if val <= 0 || val > 1 {
			return NewValidationError("thresholds", field, fmt.Errorf("%w: must be in (0, 1]", ErrInvalidValue))
		}
	}
	if t.TauCache < t.TauPre {
		return NewValidationError("thresholds", "tau_cache", fmt.Errorf("%w: must be >= tau_pre", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d.DesiredCount < 1 || d.DesiredCount > 100 {
		return NewValidationError("defaults", "desired_count", fmt.Errorf("%w: must be in [1, 100]", ErrInvalidValue))
	}
	if d.RiskProfile == "" {
		return NewValidationError("defaults", "risk_profile", ErrMissingRequiredField)
	}
	if d.ReservationDurationMinutes < 1 {
		return NewValidationError("defaults", "reservation_duration_minutes", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if d.PulseSummaryLimit < 1 {
		return NewValidationError("defaults", "pulse_summary_limit", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	return nil
}
