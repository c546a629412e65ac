package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultConfig() *Config {
	return &Config{
		configDir:  "/tmp/does-not-matter",
		Bus:        DefaultBusConfig(),
		Worker:     DefaultWorkerConfig(),
		Budget:     DefaultBudgetConfig(),
		Thresholds: DefaultThresholdConfig(),
		Defaults:   DefaultDefaults(),
	}
}

func TestConfigStats(t *testing.T) {
	cfg := defaultConfig()
	stats := cfg.Stats()

	assert.Equal(t, cfg.Worker.WorkerCount, stats.WorkerCount)
	assert.Equal(t, cfg.Bus.MaxRetries, stats.MaxRetries)
	assert.Equal(t, cfg.Budget.MaxDollars, stats.MaxDollars)
	assert.Equal(t, cfg.Thresholds.TauPre, stats.TauPre)
	assert.Equal(t, cfg.Defaults.DesiredCount, stats.DesiredCount)
}

func TestConfigDir(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, "/tmp/does-not-matter", cfg.ConfigDir())
}
