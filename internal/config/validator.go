package config

import (
	"fmt"
	"strings"
)

var validSizeMetrics = map[string]bool{
	"degree":   true,
	"pagerank": true,
	"size":     true,
}

// Validate checks the config for required fields and value ranges.
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	if !validSizeMetrics[cfg.Preparation.SizeMetric] {
		errs = append(errs, fmt.Sprintf("preparation.size_metric: %q is not one of degree, pagerank, size", cfg.Preparation.SizeMetric))
	}
	if cfg.Preparation.ClusterBy == "" {
		errs = append(errs, "preparation.cluster_by must not be empty")
	}
	if cfg.Preparation.ClusterCount < 1 {
		errs = append(errs, fmt.Sprintf("preparation.cluster_count: %d must be at least 1", cfg.Preparation.ClusterCount))
	}
	if cfg.Engine.QueueDepth < 1 {
		errs = append(errs, fmt.Sprintf("engine.queue_depth: %d must be at least 1", cfg.Engine.QueueDepth))
	}
	if cfg.Engine.CooldownMs < 0 {
		errs = append(errs, fmt.Sprintf("engine.cooldown_ms: %d must not be negative", cfg.Engine.CooldownMs))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
