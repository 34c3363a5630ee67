// Package config loads the compile-time constants of spec §6 from a YAML
// file, applying defaults and rejecting out-of-range values before any
// module initializes. Everything here is read once, before tm.Start(); the
// only field that may change afterward is LogLevel, via Watcher.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the scheduler and resource limits every module is built
// against, plus the one ambient field (LogLevel) allowed to move at
// runtime.
type Config struct {
	TicksPerSecond    int    `yaml:"ticks_per_second"`
	TicksPerSlot      int    `yaml:"ticks_per_slot"`
	MaxTasks          int    `yaml:"max_tasks"`
	MaxNumPipes       int    `yaml:"max_num_pipes"`
	MaxPipesPerPacket int    `yaml:"max_pipes_per_packet"`
	MaxTaskNameLength int    `yaml:"max_task_name_length"`
	MaxTimers         int    `yaml:"max_timers"`
	DefaultStackSize  int    `yaml:"default_stack_size"`
	LogLevel          string `yaml:"log_level"`
}

// Default returns the built-in defaults used for anything a config file
// leaves unset.
func Default() Config {
	return Config{
		TicksPerSecond:    1000,
		TicksPerSlot:      10,
		MaxTasks:          32,
		MaxNumPipes:       100,
		MaxPipesPerPacket: 10,
		MaxTaskNameLength: 32,
		MaxTimers:         8,
		DefaultStackSize:  16384,
		LogLevel:          "info",
	}
}

// Load reads path as YAML and merges it over Default(), then validates the
// result. A missing file is not an error: Load returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects the out-of-range values that would otherwise surface as
// confusing failures deep inside tm or mb construction.
func (c Config) Validate() error {
	if c.TicksPerSecond <= 0 {
		return fmt.Errorf("ticks_per_second must be positive, got %d", c.TicksPerSecond)
	}
	if c.TicksPerSlot <= 0 {
		return fmt.Errorf("ticks_per_slot must be positive, got %d", c.TicksPerSlot)
	}
	if c.MaxTasks <= 0 {
		return fmt.Errorf("max_tasks must be positive, got %d", c.MaxTasks)
	}
	if c.MaxNumPipes <= 0 {
		return fmt.Errorf("max_num_pipes must be positive, got %d", c.MaxNumPipes)
	}
	if c.MaxPipesPerPacket <= 0 || c.MaxPipesPerPacket > c.MaxNumPipes {
		return fmt.Errorf("max_pipes_per_packet must be in (0, max_num_pipes], got %d", c.MaxPipesPerPacket)
	}
	if c.MaxTaskNameLength <= 0 {
		return fmt.Errorf("max_task_name_length must be positive, got %d", c.MaxTaskNameLength)
	}
	if c.MaxTimers <= 0 {
		return fmt.Errorf("max_timers must be positive, got %d", c.MaxTimers)
	}
	if c.DefaultStackSize <= 0 {
		return fmt.Errorf("default_stack_size must be positive, got %d", c.DefaultStackSize)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be one of debug/info/warn/error, got %q", level)
	}
}
