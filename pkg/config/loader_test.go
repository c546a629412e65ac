package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitializeMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, DefaultBusConfig().RedisAddr, cfg.Bus.RedisAddr)
	require.Equal(t, DefaultWorkerConfig().WorkerCount, cfg.Worker.WorkerCount)
	require.Equal(t, DefaultBudgetConfig().MaxDollars, cfg.Budget.MaxDollars)
}

func TestInitializeUserOverridesMergeOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
bus:
  redis_addr: "redis.internal:6379"
  max_retries: 3
worker:
  worker_count: 8
budget:
  max_dollars: 12.5
thresholds:
  tau_pre: 0.9
  tau_cache: 0.95
defaults:
  desired_count: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metismedia.yaml"), []byte(yaml), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	require.Equal(t, "redis.internal:6379", cfg.Bus.RedisAddr)
	require.Equal(t, 3, cfg.Bus.MaxRetries)
	// Unset bus fields still fall back to built-in defaults.
	require.Equal(t, DefaultBusConfig().StreamMain, cfg.Bus.StreamMain)
	require.Equal(t, 8, cfg.Worker.WorkerCount)
	require.Equal(t, 12.5, cfg.Budget.MaxDollars)
	require.Equal(t, 0.9, cfg.Thresholds.TauPre)
	require.Equal(t, 25, cfg.Defaults.DesiredCount)
}

func TestInitializeExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("METISMEDIA_TEST_REDIS_ADDR", "envhost:6380")

	yaml := `
bus:
  redis_addr: "{{.METISMEDIA_TEST_REDIS_ADDR}}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metismedia.yaml"), []byte(yaml), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, "envhost:6380", cfg.Bus.RedisAddr)
}

func TestInitializeInvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metismedia.yaml"), []byte("bus: [this is not a map"), 0o644))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestInitializeRejectsInvalidMergedConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `
budget:
  max_dollars: -1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metismedia.yaml"), []byte(yaml), 0o644))

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}
