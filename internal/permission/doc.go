/*
Package permission implements the permission engine: risk assessment,
adaptive context adjustment, the approve/defer/reject decision procedure,
the remote-source gate, and the audit log.

# Overview

Every tool call a task wants to make is submitted to the Engine as a
Request. Evaluate assesses a base risk level for the tool, adjusts it for
the calling session's recent error/success history and project
sensitivity, then runs the decision procedure:

  1. Adjusted risk critical -> reject.
  2. Tool not in the configured allowlist -> defer_to_human.
  3. Adjusted risk at or below the configured threshold -> auto-approve.
  4. Unattended session with a configured timeout -> wait, then
     auto-approve tagged "timeout".
  5. Otherwise -> reject.

Requests whose task_context.source is remote additionally pass through a
gate after step 1 and before the rest of the procedure: safe read-only tools bypass approval
entirely, explicitly dangerous tools and unlisted MCP tools always defer
to a human, and anything not recognized defers as well. A user-level
allowlist (AllowRemote) can override the gate per tool.

# Risk Assessment

BaseRisk holds the per-tool default. Bash commands are scored against an
ordered severity rule list (AssessBashCommand); Write/Edit calls are
scored by destination path (AssessWritePath). AdjustForContext applies
the adaptive formula — a high recent success rate nudges risk down by
one level, recent errors nudge it up, and an after-hours session against
a sensitive project nudges it up again — then clamps to safe..critical.

	risk := BaseRisk(req.Tool)
	risk = AdjustForContext(risk, execCtx)

# Deferring to a Human

When the procedure defers, Evaluate publishes permission.required and
blocks on a per-request channel until Resolve is called with the human's
decision, the context is cancelled, or (in the timeout branch) the
configured wait elapses. Evaluate never panics or returns an error: an
internal assessment failure degrades to defer_to_human with reason
"assessment_failed" rather than propagating.

	engine := NewEngine(cfg, clock)
	decision := engine.Evaluate(ctx, req, execCtx)
	switch decision.Outcome {
	case OutcomeApproved, OutcomeTimeoutApproved:
		// proceed
	default:
		return &RejectedError{Tool: req.Tool, Reason: decision.Reason}
	}

	// elsewhere, on human response:
	engine.Resolve(req.ID, req.SessionID, types.DecisionOnce)

# Bash Command Parsing

ParseBashCommand extracts command name, subcommand, and arguments from a
shell command so callers can build or match patterns against it:

	cmds, err := ParseBashCommand("git commit -m 'fix bug'")
	// cmds[0].Name == "git", cmds[0].Subcommand == "commit"

MatchPattern/BuildPattern operate on these parsed commands for
hierarchical bash permission patterns ("git commit *", "git *", "*").
MatchesAnyPattern is the simpler tool-name-level allowlist check used by
the decision procedure's step 2.

# Doom Loop Detection

DoomLoopDetector flags a session issuing the same tool call repeatedly in
a row, independent of risk assessment. The Engine exposes this via
CheckDoomLoop; callers should consult it before even submitting a
request, since a detected loop is a supervisor-level concern rather than
a permission outcome.

# Audit Log

Every Evaluate call appends one types.AuditEntry to an in-memory ring
buffer capped at 1000 entries (oldest evicted first). Audit returns a
snapshot.

# Thread Safety

Engine is safe for concurrent use across sessions.
*/
package permission
