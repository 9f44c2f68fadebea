package services

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SimConfig holds the engine tunables loaded from the sim config yaml file.
type SimConfig struct {
	DefaultBalance   float64       `yaml:"default_balance"`
	MarginMultiplier float64       `yaml:"margin_multiplier"`
	SlippageMin      float64       `yaml:"slippage_min"`
	SlippageMax      float64       `yaml:"slippage_max"`
	PriceTTL         time.Duration `yaml:"price_ttl"`
	PriceTimeout     time.Duration `yaml:"price_timeout"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	SnapshotBarCount int           `yaml:"snapshot_bar_count"`
	BarSeedDir       string        `yaml:"bar_seed_dir"`
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		DefaultBalance:   100000,
		MarginMultiplier: 4,
		SlippageMin:      0.001,
		SlippageMax:      0.005,
		PriceTTL:         15 * time.Second,
		PriceTimeout:     5 * time.Second,
		TickInterval:     time.Second,
		SnapshotBarCount: 20,
	}
}

// LoadSimConfig reads the yaml config at path, filling unset fields from the
// defaults. A missing file is not an error; defaults are returned as-is.
func LoadSimConfig(path string) (SimConfig, error) {
	cfg := DefaultSimConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return cfg, fmt.Errorf("LoadSimConfig: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("LoadSimConfig: unmarshal %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("LoadSimConfig: %w", err)
	}

	return cfg, nil
}

func (c SimConfig) Validate() error {
	if c.DefaultBalance <= 0 {
		return fmt.Errorf("default_balance must be positive")
	}

	if c.MarginMultiplier < 1 {
		return fmt.Errorf("margin_multiplier must be at least 1")
	}

	if c.SlippageMin < 0 || c.SlippageMax < c.SlippageMin {
		return fmt.Errorf("slippage range [%f, %f] is invalid", c.SlippageMin, c.SlippageMax)
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}

	if c.SnapshotBarCount <= 0 {
		return fmt.Errorf("snapshot_bar_count must be positive")
	}

	return nil
}
