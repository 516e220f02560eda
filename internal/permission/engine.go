package permission

import (
	"context"
	"sync"
	"time"

	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/internal/event"
	"github.com/codecoder/codecoder/pkg/types"
)

// maxAuditEntries bounds the in-memory audit ring buffer.
const maxAuditEntries = 1000

// safeTools bypass remote-gate approval entirely.
var safeTools = map[string]bool{"Read": true, "Glob": true, "Grep": true, "LS": true}

// explicitlyDangerous tools always need human approval under the remote
// gate, even when auto-approve would otherwise fire.
var explicitlyDangerous = map[string]bool{"Bash": true, "Task": true}

// Engine evaluates permission requests against the risk model and the
// configured policy, waiting on human approval when deferred.
type Engine struct {
	mu sync.RWMutex

	config    types.PermissionConfig
	clock     *clock.Clock
	doomLoop  *DoomLoopDetector
	pending   map[string]chan Response
	audit     []types.AuditEntry
	remoteAllow map[string]bool // user-level allowlist overriding the remote gate
}

// NewEngine creates a permission Engine under cfg.
func NewEngine(cfg types.PermissionConfig, c *clock.Clock) *Engine {
	return &Engine{
		config:      cfg,
		clock:       c,
		doomLoop:    NewDoomLoopDetector(),
		pending:     make(map[string]chan Response),
		remoteAllow: make(map[string]bool),
	}
}

// AllowRemote adds tool to the user-level allowlist that overrides the
// remote gate; persisted by the caller (workspace/config layer) so it
// survives restarts.
func (e *Engine) AllowRemote(tool string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remoteAllow[tool] = true
}

// Evaluate runs the full permission decision procedure for req. It never
// returns an error from internal failure; instead it degrades to
// defer_to_human with reason "assessment_failed".
func (e *Engine) Evaluate(ctx context.Context, req Request, ec types.ExecutionContext) Decision {
	risk, reason, failed := e.assessRisk(req)
	if failed {
		decision := e.deferToHuman(ctx, req, risk, "assessment_failed")
		e.recordAudit(decision, req)
		return decision
	}
	risk = AdjustForContext(risk, ec)

	decision := e.decide(ctx, req, risk, reason)
	e.recordAudit(decision, req)
	return decision
}

// assessRisk computes the pre-adjustment risk for req, recovering from any
// panic in tool-specific assessment and signaling failure so the caller can
// degrade to defer_to_human.
func (e *Engine) assessRisk(req Request) (risk types.RiskLevel, reason string, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			risk = types.RiskMedium
			reason = "assessment_failed"
			failed = true
		}
	}()

	switch req.Tool {
	case "Bash":
		command, _ := req.Input.(string)
		if m, ok := req.Input.(map[string]any); ok {
			if c, ok := m["command"].(string); ok {
				command = c
			}
		}
		return AssessBashCommand(command), "bash command severity rule", false
	case "Write", "Edit":
		path, _ := req.Input.(string)
		if m, ok := req.Input.(map[string]any); ok {
			if p, ok := m["file_path"].(string); ok {
				path = p
			} else if p, ok := m["path"].(string); ok {
				path = p
			}
		}
		return AssessWritePath(path), "write/edit path rule", false
	default:
		return BaseRisk(req.Tool), "base risk table", false
	}
}

// decide implements the decision procedure from the permission request
// contract: critical always rejects first and unconditionally, before the
// remote gate or any other rule gets a chance to defer it to a human who
// could approve it; non-allowlisted tools defer to a human, low-enough
// risk auto-approves, unattended sessions with a timeout auto-approve
// after waiting, everything else rejects.
func (e *Engine) decide(ctx context.Context, req Request, risk types.RiskLevel, reason string) Decision {
	d := Decision{PermissionID: req.ID, Risk: risk, Reason: reason}

	if risk == types.RiskCritical {
		d.Outcome = OutcomeRejected
		d.Reason = "risk critical"
		return d
	}

	if req.TaskContext.Source == types.SourceRemote {
		if gated, gatedDecision := e.remoteGate(ctx, req, risk); gated {
			return gatedDecision
		}
	}

	if !MatchesAnyPattern(req.Tool, e.config.AllowTools) {
		return e.deferToHuman(ctx, req, risk, "tool not in allowlist")
	}

	threshold := types.ParseRiskLevel(e.config.Threshold)
	if e.config.Threshold == "" {
		threshold = types.RiskLow
	}
	if risk <= threshold {
		d.Outcome = OutcomeApproved
		d.DecidedBy = types.DecidedAuto
		d.Reason = "risk within threshold"
		return d
	}

	if e.config.Unattended && e.config.TimeoutMs > 0 {
		select {
		case <-time.After(time.Duration(e.config.TimeoutMs) * time.Millisecond):
		case <-ctx.Done():
		}
		d.Outcome = OutcomeTimeoutApproved
		d.DecidedBy = types.DecidedTimeout
		d.Reason = "unattended timeout elapsed"
		return d
	}

	d.Outcome = OutcomeRejected
	d.Reason = "above threshold, not unattended"
	return d
}

// remoteGate applies the orthogonal remote-source rules. Returns
// (true, decision) when the gate determines the outcome outright;
// (false, zero) when the normal decision procedure should still run.
func (e *Engine) remoteGate(ctx context.Context, req Request, risk types.RiskLevel) (bool, Decision) {
	e.mu.RLock()
	allowed := e.remoteAllow[req.Tool]
	e.mu.RUnlock()
	if allowed {
		return false, Decision{}
	}

	if safeTools[req.Tool] {
		return true, Decision{PermissionID: req.ID, Risk: risk, Outcome: OutcomeApproved, DecidedBy: types.DecidedAuto, Reason: "remote: safe tool"}
	}
	if explicitlyDangerous[req.Tool] {
		return true, e.deferToHuman(ctx, req, risk, "remote: explicitly dangerous tool")
	}
	if len(req.Tool) > 4 && req.Tool[:4] == "mcp_" {
		return true, e.deferToHuman(ctx, req, risk, "remote: unlisted mcp tool")
	}
	return true, e.deferToHuman(ctx, req, risk, "remote: unknown tool")
}

// deferToHuman publishes a permission.required event and blocks until a
// human responds, the context is cancelled, or the request channel closes.
func (e *Engine) deferToHuman(ctx context.Context, req Request, risk types.RiskLevel, reason string) Decision {
	respCh := make(chan Response, 1)
	e.mu.Lock()
	e.pending[req.ID] = respCh
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, req.ID)
		e.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.PermissionRequired,
		Data: event.PermissionRequiredData{
			ID: req.ID, SessionID: req.SessionID, TaskID: req.TaskID,
			Tool: req.Tool, Pattern: req.Pattern, Title: req.Title,
		},
	})

	d := Decision{PermissionID: req.ID, Risk: risk, DecidedBy: types.DecidedHuman}
	select {
	case <-ctx.Done():
		d.Outcome = OutcomeRejected
		d.Reason = "context cancelled awaiting human decision"
	case resp := <-respCh:
		switch resp.Decision {
		case types.DecisionOnce, types.DecisionAlways:
			d.Outcome = OutcomeApproved
			d.Reason = reason
		default:
			d.Outcome = OutcomeRejected
			d.Reason = "rejected by human"
		}
	}
	return d
}

// Resolve delivers a human decision to a pending request, if any is
// outstanding; always publishes permission.resolved.
func (e *Engine) Resolve(requestID, sessionID string, decision types.PermissionDecision) {
	e.mu.RLock()
	ch, ok := e.pending[requestID]
	e.mu.RUnlock()
	if ok {
		ch <- Response{RequestID: requestID, Decision: decision}
	}
	event.Publish(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionResolvedData{ID: requestID, SessionID: sessionID, Granted: decision != types.DecisionReject},
	})
}

// recordAudit appends a decision to the ring buffer, evicting the oldest
// entry FIFO once full.
func (e *Engine) recordAudit(d Decision, req Request) {
	pattern := ""
	if len(req.Pattern) > 0 {
		pattern = req.Pattern[0]
	}
	entry := types.AuditEntry{
		Timestamp: e.clock.Now(), PermissionID: d.PermissionID, Tool: req.Tool,
		Pattern: pattern, Risk: d.Risk, Decision: string(d.Outcome), Reason: d.Reason,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.audit = append(e.audit, entry)
	if len(e.audit) > maxAuditEntries {
		e.audit = e.audit[len(e.audit)-maxAuditEntries:]
	}
}

// Audit returns a snapshot of the audit ring buffer.
func (e *Engine) Audit() []types.AuditEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.AuditEntry, len(e.audit))
	copy(out, e.audit)
	return out
}

// CheckDoomLoop reports whether this call looks like a repeated-call loop
// for sessionID, per the doom-loop detector.
func (e *Engine) CheckDoomLoop(sessionID, tool string, input any) bool {
	return e.doomLoop.Check(sessionID, tool, input)
}
