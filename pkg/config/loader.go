package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the complete metismedia.yaml file structure. Every
// section is optional: an absent section means "use the built-in default".
type YAMLConfig struct {
	Bus        *BusConfig       `yaml:"bus"`
	Worker     *WorkerConfig    `yaml:"worker"`
	Budget     *BudgetConfig    `yaml:"budget"`
	Thresholds *ThresholdConfig `yaml:"thresholds"`
	Defaults   *Defaults        `yaml:"defaults"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load metismedia.yaml from configDir (missing file falls back to
//     built-in defaults rather than failing)
//  2. Expand environment variables
//  3. Merge user-provided sections onto built-in defaults
//  4. Validate all configuration
//  5. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"worker_count", stats.WorkerCount,
		"max_retries", stats.MaxRetries,
		"max_dollars", stats.MaxDollars,
		"tau_pre", stats.TauPre)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadMetisMediaYAML()
	if err != nil {
		return nil, err
	}

	bus := DefaultBusConfig()
	if yamlCfg.Bus != nil {
		if err := mergo.Merge(bus, yamlCfg.Bus, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge bus config: %w", err)
		}
	}

	worker := DefaultWorkerConfig()
	if yamlCfg.Worker != nil {
		if err := mergo.Merge(worker, yamlCfg.Worker, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge worker config: %w", err)
		}
	}

	budget := DefaultBudgetConfig()
	if yamlCfg.Budget != nil {
		if err := mergo.Merge(budget, yamlCfg.Budget, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge budget config: %w", err)
		}
	}

	thresholds := DefaultThresholdConfig()
	if yamlCfg.Thresholds != nil {
		if err := mergo.Merge(thresholds, yamlCfg.Thresholds, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge thresholds config: %w", err)
		}
	}

	defaults := DefaultDefaults()
	if yamlCfg.Defaults != nil {
		if err := mergo.Merge(defaults, yamlCfg.Defaults, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge defaults config: %w", err)
		}
	}

	return &Config{
		configDir:  configDir,
		Bus:        bus,
		Worker:     worker,
		Budget:     budget,
		Thresholds: thresholds,
		Defaults:   defaults,
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// ExpandEnv passes through original data on parse/execution errors,
	// letting the YAML parser surface a clearer error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

// loadMetisMediaYAML loads metismedia.yaml. A missing file is not an error:
// it means every section falls back to its built-in default.
func (l *configLoader) loadMetisMediaYAML() (*YAMLConfig, error) {
	var cfg YAMLConfig

	path := filepath.Join(l.configDir, "metismedia.yaml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &cfg, nil
	}

	if err := l.loadYAML("metismedia.yaml", &cfg); err != nil {
		return nil, NewLoadError("metismedia.yaml", err)
	}

	return &cfg, nil
}
