package permission

import (
	"os"
	"strconv"

	"github.com/codecoder/codecoder/pkg/types"
)

// readOnlyTools is the allowlist for the safe-only stock policy.
var readOnlyTools = []string{"Read", "Glob", "Grep", "LS", "WebFetch", "WebSearch"}

// SafeOnlyConfig returns the stock policy that only ever auto-approves
// read-only tools, deferring everything else to a human with no timeout.
func SafeOnlyConfig() types.PermissionConfig {
	return types.PermissionConfig{
		AllowTools: readOnlyTools,
		Threshold:  types.RiskLow.String(),
	}
}

// PermissiveConfig returns the stock policy that accepts any tool up to
// medium risk and, since it marks sessions unattended, auto-approves
// anything above that after a 30s wait. Critical risk is still rejected.
func PermissiveConfig() types.PermissionConfig {
	return types.PermissionConfig{
		AllowTools: nil, // empty allowlist = accept all tools
		Threshold:  types.RiskMedium.String(),
		Unattended: true,
		TimeoutMs:  30_000,
	}
}

// EnvDrivenConfig builds a PermissionConfig from environment variables,
// refusing a critical threshold (clamped down to high) since critical risk
// must never be auto-approvable.
//
//   CCODE_PERMISSION_ALLOW_TOOLS    comma-separated tool allowlist (empty = all)
//   CCODE_PERMISSION_THRESHOLD      safe|low|medium|high (default low)
//   CCODE_PERMISSION_UNATTENDED     "true" to enable unattended timeout approval
//   CCODE_PERMISSION_TIMEOUT_MS     timeout in milliseconds (default 0, disabled)
func EnvDrivenConfig() types.PermissionConfig {
	cfg := types.PermissionConfig{
		Threshold: types.RiskLow.String(),
	}

	if raw := os.Getenv("CCODE_PERMISSION_ALLOW_TOOLS"); raw != "" {
		cfg.AllowTools = splitNonEmpty(raw, ',')
	}

	if raw := os.Getenv("CCODE_PERMISSION_THRESHOLD"); raw != "" {
		threshold := types.ParseRiskLevel(raw)
		if threshold >= types.RiskCritical {
			threshold = types.RiskHigh
		}
		cfg.Threshold = threshold.String()
	}

	if raw := os.Getenv("CCODE_PERMISSION_UNATTENDED"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			cfg.Unattended = b
		}
	}

	if raw := os.Getenv("CCODE_PERMISSION_TIMEOUT_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
			cfg.TimeoutMs = ms
		}
	}

	return cfg
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
