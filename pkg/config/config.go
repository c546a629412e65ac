package config

// Config is the umbrella configuration object returned by Initialize()
// and threaded through the orchestrator, bus workers, and node handlers.
type Config struct {
	configDir string

	Bus        *BusConfig
	Worker     *WorkerConfig
	Budget     *BudgetConfig
	Thresholds *ThresholdConfig
	Defaults   *Defaults
}

// ConfigStats summarizes loaded configuration for logging and the health
// endpoint.
type ConfigStats struct {
	WorkerCount  int
	MaxRetries   int
	MaxDollars   float64
	TauPre       float64
	DesiredCount int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		WorkerCount:  c.Worker.WorkerCount,
		MaxRetries:   c.Bus.MaxRetries,
		MaxDollars:   c.Budget.MaxDollars,
		TauPre:       c.Thresholds.TauPre,
		DesiredCount: c.Defaults.DesiredCount,
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}
