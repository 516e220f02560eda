// Package config loads, merges, and hot-reloads CodeCoder's configuration:
// a primary config.json plus optional overlays, with environment variables
// taking final precedence.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codecoder/codecoder/internal/workspace"
	"github.com/codecoder/codecoder/pkg/types"
	"github.com/tidwall/jsonc"
)

const (
	primaryFile   = "config.json"
	secretsFile   = "secrets.json"
	channelsFile  = "channels.json"
	providersFile = "providers.json"
	tradingFile   = "trading.json"

	secretsFileMode = 0o600
)

// Load reads config.json plus any overlay files present under layout.Root,
// merges them into a single types.Config, applies environment overrides,
// and returns the result. Missing files are skipped silently; a present but
// malformed file is a hard error.
func Load(layout *workspace.Layout) (*types.Config, error) {
	cfg := &types.Config{}

	if err := loadInto(layout.Root, primaryFile, cfg); err != nil {
		return nil, err
	}
	if err := loadOverlayInto(layout.Root, secretsFile, &cfg.Secrets); err != nil {
		return nil, err
	}
	if err := loadOverlayInto(layout.Root, channelsFile, &cfg.Channels); err != nil {
		return nil, err
	}
	if err := loadOverlayInto(layout.Root, providersFile, &cfg.Providers); err != nil {
		return nil, err
	}
	if err := loadOverlayInto(layout.Root, tradingFile, &cfg.Trading); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadInto reads name from dir (if present), strips JSONC comments, and
// unmarshals it into cfg in place.
func loadInto(dir, name string, cfg *types.Config) error {
	data, ok, err := readIfExists(dir, name)
	if err != nil || !ok {
		return err
	}
	return unmarshalJSONC(data, cfg)
}

// loadOverlayInto reads an overlay file into an opaque map, merging it into
// *dst if the file is present.
func loadOverlayInto(dir, name string, dst *map[string]any) error {
	data, ok, err := readIfExists(dir, name)
	if err != nil || !ok {
		return err
	}
	var m map[string]any
	if err := unmarshalJSONC(data, &m); err != nil {
		return err
	}
	if *dst == nil {
		*dst = make(map[string]any, len(m))
	}
	for k, v := range m {
		(*dst)[k] = v
	}
	return nil
}

func readIfExists(dir, name string) ([]byte, bool, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func unmarshalJSONC(data []byte, v any) error {
	return json.Unmarshal(jsonc.ToJSON(data), v)
}

// mergeConfig deep-merges source into target: scalars overwrite when set,
// maps merge key by key, the Permission pointer replaces wholesale when
// present.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}

	if source.Gateway.Port != 0 {
		target.Gateway.Port = source.Gateway.Port
	}
	if source.Gateway.APIKey != "" {
		target.Gateway.APIKey = source.Gateway.APIKey
	}
	if source.Gateway.EnableCORS {
		target.Gateway.EnableCORS = true
	}

	if source.Observability.Level != "" {
		target.Observability.Level = source.Observability.Level
	}
	if source.Observability.Sampling != 0 {
		target.Observability.Sampling = source.Observability.Sampling
	}
	target.Observability.Enabled = target.Observability.Enabled || source.Observability.Enabled

	if source.AutoApprove.Threshold != "" {
		target.AutoApprove.Threshold = source.AutoApprove.Threshold
	}
	if len(source.AutoApprove.Tools) > 0 {
		target.AutoApprove.Tools = source.AutoApprove.Tools
	}
	if source.AutoApprove.TimeoutMs != 0 {
		target.AutoApprove.TimeoutMs = source.AutoApprove.TimeoutMs
	}
	target.AutoApprove.Enabled = target.AutoApprove.Enabled || source.AutoApprove.Enabled

	if source.Permission != nil {
		target.Permission = source.Permission
	}

	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]types.MCPConfig, len(source.MCP))
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}

	if source.Vault.Path != "" {
		target.Vault.Path = source.Vault.Path
	}
	if source.Vault.KeyFile != "" {
		target.Vault.KeyFile = source.Vault.KeyFile
	}

	mergeMap(&target.Secrets, source.Secrets)
	mergeMap(&target.Channels, source.Channels)
	mergeMap(&target.Providers, source.Providers)
	mergeMap(&target.Trading, source.Trading)
}

func mergeMap(target *map[string]any, source map[string]any) {
	if source == nil {
		return
	}
	if *target == nil {
		*target = make(map[string]any, len(source))
	}
	for k, v := range source {
		(*target)[k] = v
	}
}

// applyEnvOverrides applies the environment variables named in spec §4.11
// (CODECODER_GATEWAY_PORT, CODECODER_LOG_LEVEL) plus a small extension for
// the API key, since both leaves gate the same externally reachable surface.
func applyEnvOverrides(cfg *types.Config) {
	if port := os.Getenv("CODECODER_GATEWAY_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = n
		}
	}
	if key := os.Getenv("CODECODER_GATEWAY_API_KEY"); key != "" {
		cfg.Gateway.APIKey = key
	}
	if level := os.Getenv("CODECODER_LOG_LEVEL"); level != "" {
		cfg.Observability.Level = level
	}
}

// Save writes cfg as indented JSON to path. secrets.json-style overlays
// should be saved with 0600; callers pass the mode explicitly via
// SaveWithMode when that matters.
func Save(cfg *types.Config, path string) error {
	return SaveWithMode(cfg, path, 0o644)
}

// SaveWithMode is Save with an explicit file mode, used for secrets.json
// (0600) and mcp-auth.json-adjacent overlays.
func SaveWithMode(cfg *types.Config, path string, mode os.FileMode) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, mode)
}
