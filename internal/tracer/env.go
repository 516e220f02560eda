package tracer

import (
	"os"
	"strconv"
	"strings"
)

// ConfigFromEnv overlays CCODE_OBSERVABILITY_ENABLED/LEVEL/TRACE_SAMPLING on
// top of a JSON-sourced base config, per spec.md §6's "env vars override
// JSON config" rule.
func ConfigFromEnv(base Config) Config {
	cfg := base

	if v := os.Getenv("CCODE_OBSERVABILITY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = b
		}
	}
	if v := strings.ToLower(os.Getenv("CCODE_OBSERVABILITY_LEVEL")); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("CCODE_OBSERVABILITY_TRACE_SAMPLING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sampling = f
		}
	}

	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Sampling == 0 {
		cfg.Sampling = 1
	}
	return cfg
}
