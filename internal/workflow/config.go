// File path: internal/workflow/config.go
package workflow

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config tunes the engine's generation fan-out and retention policy.
type Config struct {
	Concurrency     int           `json:"concurrency"`
	UnitTimeout     time.Duration `json:"-"`
	PlanWeeks       int           `json:"plan_weeks"`
	SessionTTL      time.Duration `json:"-"`
	CleanupInterval time.Duration `json:"-"`
}

// Merge overlays the non-zero fields of override onto the base configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if override.Concurrency > 0 {
		result.Concurrency = override.Concurrency
	}
	if override.UnitTimeout > 0 {
		result.UnitTimeout = override.UnitTimeout
	}
	if override.PlanWeeks > 0 {
		result.PlanWeeks = override.PlanWeeks
	}
	if override.SessionTTL > 0 {
		result.SessionTTL = override.SessionTTL
	}
	if override.CleanupInterval > 0 {
		result.CleanupInterval = override.CleanupInterval
	}
	return result
}

// LoadConfig reads engine settings from the environment and applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if raw := strings.TrimSpace(os.Getenv("COURSEKIT_GENERATE_CONCURRENCY")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse COURSEKIT_GENERATE_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = value
	}
	if raw := strings.TrimSpace(os.Getenv("COURSEKIT_UNIT_TIMEOUT")); raw != "" {
		value, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse COURSEKIT_UNIT_TIMEOUT: %w", err)
		}
		cfg.UnitTimeout = value
	}
	if raw := strings.TrimSpace(os.Getenv("COURSEKIT_PLAN_WEEKS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse COURSEKIT_PLAN_WEEKS: %w", err)
		}
		cfg.PlanWeeks = value
	}
	if raw := strings.TrimSpace(os.Getenv("COURSEKIT_SESSION_TTL")); raw != "" {
		value, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse COURSEKIT_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = value
	}
	if raw := strings.TrimSpace(os.Getenv("COURSEKIT_CLEANUP_INTERVAL")); raw != "" {
		value, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse COURSEKIT_CLEANUP_INTERVAL: %w", err)
		}
		cfg.CleanupInterval = value
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.UnitTimeout <= 0 {
		c.UnitTimeout = 2 * time.Minute
	}
	if c.PlanWeeks <= 0 {
		c.PlanWeeks = 12
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
}
