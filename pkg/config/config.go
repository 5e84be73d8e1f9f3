package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/luckerby/allocmem/internal/block"
	"github.com/luckerby/allocmem/internal/logging"
)

// maxCommitUnset marks max_commit_mb as not provided. 0 is a meaningful
// value (run forever), so absence needs its own sentinel.
const maxCommitUnset = -1

// Config represents the main configuration structure
type Config struct {
	Alloc   AllocConfig       `yaml:"alloc"`
	Logging logging.LogConfig `yaml:"logging"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// AllocConfig controls the allocation loop
type AllocConfig struct {
	BlockSizeMB         int     `yaml:"block_size_mb"`         // size of each allocation unit
	TouchFillRatio      float64 `yaml:"touch_fill_ratio"`      // fraction of each block's pages touched
	DelayMs             int     `yaml:"delay_ms"`              // pause between successive allocations
	MaxCommitMB         int     `yaml:"max_commit_mb"`         // stop condition; 0 runs forever
	BreakAfterStart     bool    `yaml:"break_after_start"`     // pause for confirmation before allocating
	StatsIntervalBlocks int     `yaml:"stats_interval_blocks"` // blocks between memory snapshots
}

// MetricsConfig controls the optional Prometheus listener
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Set defaults
	config := &Config{
		Alloc: AllocConfig{
			BlockSizeMB:         1,
			TouchFillRatio:      1.0,
			DelayMs:             0,
			MaxCommitMB:         maxCommitUnset,
			BreakAfterStart:     false,
			StatsIntervalBlocks: 10,
		},
		Logging: logging.LogConfig{
			Level:         "info",
			EnableConsole: true,
			EnableFile:    false,
			LogFile:       "",
			BufferSize:    256,
			LogDir:        "",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9551",
		},
	}

	// Try to read file
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults; flags must fill in the rest
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := block.ElementsPerBlock(c.Alloc.BlockSizeMB); err != nil {
		return fmt.Errorf("alloc.block_size_mb: %w", err)
	}
	if c.Alloc.TouchFillRatio < 0 || c.Alloc.TouchFillRatio > 1 {
		return fmt.Errorf("alloc.touch_fill_ratio must be within [0,1], got %g", c.Alloc.TouchFillRatio)
	}
	if c.Alloc.DelayMs < 0 {
		return fmt.Errorf("alloc.delay_ms must be non-negative, got %d", c.Alloc.DelayMs)
	}
	if c.Alloc.MaxCommitMB == maxCommitUnset {
		return fmt.Errorf("alloc.max_commit_mb must be set (0 runs with no commit ceiling)")
	}
	if c.Alloc.MaxCommitMB < 0 {
		return fmt.Errorf("alloc.max_commit_mb must be non-negative, got %d", c.Alloc.MaxCommitMB)
	}
	if c.Alloc.StatsIntervalBlocks <= 0 {
		return fmt.Errorf("alloc.stats_interval_blocks must be positive, got %d", c.Alloc.StatsIntervalBlocks)
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr must be set when metrics are enabled")
	}
	return nil
}
