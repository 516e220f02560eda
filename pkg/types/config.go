package types

// Config is the merged, typed CodeCoder configuration assembled from
// config.json plus overlay files and environment variables.
type Config struct {
	Schema string `json:"$schema,omitempty"`

	Gateway       GatewayConfig       `json:"gateway,omitempty"`
	Observability ObservabilityConfig `json:"observability,omitempty"`
	AutoApprove   AutoApproveConfig   `json:"auto_approve,omitempty"`
	Permission    *PermissionConfig   `json:"permission,omitempty"`
	MCP           map[string]MCPConfig `json:"mcp,omitempty"`
	Vault         VaultConfig         `json:"vault,omitempty"`

	// Overlay-sourced sections (secrets.json, channels.json, providers.json,
	// trading.json); kept as opaque maps so overlay schemas can evolve
	// without widening the core Config type.
	Secrets   map[string]any `json:"secrets,omitempty"`
	Channels  map[string]any `json:"channels,omitempty"`
	Providers map[string]any `json:"providers,omitempty"`
	Trading   map[string]any `json:"trading,omitempty"`
}

// GatewayConfig controls the local HTTP/RPC surface.
type GatewayConfig struct {
	Port       int    `json:"port,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	EnableCORS bool   `json:"enable_cors,omitempty"`
}

// ObservabilityConfig controls the tracer (C2).
type ObservabilityConfig struct {
	Enabled  bool    `json:"enabled"`
	Level    string  `json:"level,omitempty"` // debug|info|warn|error
	Sampling float64 `json:"sampling,omitempty"`
}

// AutoApproveConfig controls the permission engine's auto-approve policy (C12).
type AutoApproveConfig struct {
	Enabled   bool     `json:"enabled"`
	Threshold string   `json:"threshold,omitempty"` // safe|low|medium|high
	Tools     []string `json:"tools,omitempty"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
}

// MCPConfig describes one configured MCP server (client-facing) or the
// server's own exposed transport (server-facing), matching C9's transport
// contract.
type MCPConfig struct {
	Type        string            `json:"type,omitempty"` // local|remote|stdio|http
	Command     []string          `json:"command,omitempty"`
	URL         string            `json:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Timeout     int               `json:"timeout,omitempty"`
}

// VaultConfig points at the vault file and its key material.
type VaultConfig struct {
	Path    string `json:"path,omitempty"`
	KeyFile string `json:"key_file,omitempty"`
}

// Model represents an LLM model available from a provider, kept because the
// RPC surface's vault/credential CRUD operations are provider-agnostic and
// agents reference models by this shape when building headers.
type Model struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProviderID string `json:"providerID"`
}
