package permission

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/codecoder/codecoder/pkg/types"
)

func TestSafeOnlyConfig_RejectsNonReadOnlyTool(t *testing.T) {
	e := newTestEngine(SafeOnlyConfig())
	// Bash defers to a human with no timeout; no human answers here, so the
	// deadline ends the wait.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	d := e.Evaluate(ctx, Request{ID: "s1", Tool: "Bash", Input: "echo hi"}, types.ExecutionContext{})
	if d.Outcome == OutcomeApproved {
		t.Error("safe-only policy should never auto-approve Bash")
	}
}

func TestSafeOnlyConfig_ApprovesReadOnlyTool(t *testing.T) {
	e := newTestEngine(SafeOnlyConfig())
	d := e.Evaluate(context.Background(), Request{ID: "s2", Tool: "Read"}, types.ExecutionContext{})
	if d.Outcome != OutcomeApproved {
		t.Errorf("outcome = %v, want approved for Read under safe-only", d.Outcome)
	}
}

func TestPermissiveConfig_AcceptsAnyToolEventually(t *testing.T) {
	cfg := PermissiveConfig()
	cfg.TimeoutMs = 5 // keep the test fast
	e := newTestEngine(cfg)
	d := e.Evaluate(context.Background(), Request{ID: "s3", Tool: "Bash", Input: "git push origin main"}, types.ExecutionContext{})
	if d.Outcome != OutcomeTimeoutApproved {
		t.Errorf("outcome = %v, want timeout_approved under permissive policy", d.Outcome)
	}
}

func TestEnvDrivenConfig_ClampsCriticalThresholdToHigh(t *testing.T) {
	os.Setenv("CCODE_PERMISSION_THRESHOLD", "critical")
	defer os.Unsetenv("CCODE_PERMISSION_THRESHOLD")

	cfg := EnvDrivenConfig()
	if cfg.Threshold != types.RiskHigh.String() {
		t.Errorf("threshold = %q, want clamped to %q", cfg.Threshold, types.RiskHigh.String())
	}
}

func TestEnvDrivenConfig_ParsesAllowlistAndTimeout(t *testing.T) {
	os.Setenv("CCODE_PERMISSION_ALLOW_TOOLS", "Read,Write,Bash")
	os.Setenv("CCODE_PERMISSION_UNATTENDED", "true")
	os.Setenv("CCODE_PERMISSION_TIMEOUT_MS", "1500")
	defer os.Unsetenv("CCODE_PERMISSION_ALLOW_TOOLS")
	defer os.Unsetenv("CCODE_PERMISSION_UNATTENDED")
	defer os.Unsetenv("CCODE_PERMISSION_TIMEOUT_MS")

	cfg := EnvDrivenConfig()
	if len(cfg.AllowTools) != 3 {
		t.Fatalf("allowTools = %v, want 3 entries", cfg.AllowTools)
	}
	if !cfg.Unattended || cfg.TimeoutMs != 1500 {
		t.Errorf("unattended/timeout = %v/%d, want true/1500", cfg.Unattended, cfg.TimeoutMs)
	}
}
