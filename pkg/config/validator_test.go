package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAllDefaultsPass(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, NewValidator(cfg).ValidateAll())
}

func TestValidateBus(t *testing.T) {
	t.Run("missing redis addr", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Bus.RedisAddr = ""
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("stream main equals stream dlq", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Bus.StreamDLQ = cfg.Bus.StreamMain
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("negative max retries", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Bus.MaxRetries = -1
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("zero block ms", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Bus.BlockMS = 0
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})
}

func TestValidateWorker(t *testing.T) {
	cfg := defaultConfig()
	cfg.Worker.WorkerCount = 0
	assert.Error(t, NewValidator(cfg).ValidateAll())
}

func TestValidateBudget(t *testing.T) {
	t.Run("zero max dollars", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Budget.MaxDollars = 0
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("negative provider cap", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Budget.MaxProviderCalls["embedding"] = -1
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})
}

func TestValidateThresholds(t *testing.T) {
	t.Run("out of range tau_pre", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Thresholds.TauPre = 1.5
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("tau_cache below tau_pre", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Thresholds.TauCache = cfg.Thresholds.TauPre - 0.1
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})
}

func TestValidateDefaults(t *testing.T) {
	t.Run("desired count out of range", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Defaults.DesiredCount = 0
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("missing risk profile", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Defaults.RiskProfile = ""
		assert.Error(t, NewValidator(cfg).ValidateAll())
	})
}
