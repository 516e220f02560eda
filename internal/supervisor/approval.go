package supervisor

import (
	"context"
	"fmt"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/internal/event"
	"github.com/codecoder/codecoder/internal/permission"
	"github.com/codecoder/codecoder/pkg/types"
)

func (s *Supervisor) recordDecision(ctx context.Context, task *types.Task, reasoning string) (string, error) {
	if s.causal == nil {
		return "", nil
	}
	return s.causal.RecordDecision(ctx, types.Decision{
		SessionID: task.ID,
		AgentID:   task.AgentID,
		Prompt:    task.Prompt,
		Reasoning: reasoning,
		Timestamp: s.clock.Now(),
	})
}

func (s *Supervisor) recordAction(ctx context.Context, decisionID, tool string, input any) (string, error) {
	if s.causal == nil || decisionID == "" {
		return "", nil
	}
	return s.causal.RecordAction(ctx, decisionID, types.Action{
		ActionType:  types.ActionToolExecution,
		Description: tool,
		Input:       input,
		Timestamp:   s.clock.Now(),
	})
}

func (s *Supervisor) recordOutcome(ctx context.Context, actionID string, status types.OutcomeStatus, description string) {
	if s.causal == nil || actionID == "" {
		return
	}
	_, _ = s.causal.RecordOutcome(ctx, actionID, types.Outcome{
		Status:      status,
		Description: description,
		Timestamp:   s.clock.Now(),
	})
}

// runToolCall submits step's tool call for permission assessment, parking the
// task as awaiting_approval if the engine defers, then executes the tool on
// approval. Returns (nil, true) if ctx was cancelled while waiting.
func (s *Supervisor) runToolCall(ctx context.Context, taskID string, task *types.Task, agent Agent, step Step, decisionID string) (*ToolResult, bool) {
	if s.perm.CheckDoomLoop(taskID, step.Tool, step.ToolInput) {
		actionID, _ := s.recordAction(ctx, decisionID, step.Tool, step.ToolInput)
		s.recordOutcome(ctx, actionID, types.OutcomeFailure, "doom loop detected: same tool call repeated")
		s.fail(taskID, "doom_loop_detected", fmt.Errorf("tool %q repeated identically %d times in a row: %w", step.Tool, permission.DoomLoopThreshold, apperr.ErrDoomLoop))
		return nil, false
	}

	actionID, _ := s.recordAction(ctx, decisionID, step.Tool, step.ToolInput)
	s.publish(taskID, event.TaskToolUse, event.ToolUseData{TaskID: taskID, ActionID: actionID, Tool: step.Tool, Input: step.ToolInput})

	permID := s.clock.NewID(clock.PrefixPermission)
	req := permission.Request{
		ID:        permID,
		SessionID: taskID,
		TaskID:    taskID,
		Tool:      step.Tool,
		Input:     step.ToolInput,
		TaskContext: types.TaskContextForPermission{
			Source:    task.Context.Source,
			UserID:    task.Context.UserID,
			SessionID: taskID,
		},
	}

	unsub := event.Subscribe(event.PermissionRequired, func(ev event.Event) {
		data, ok := ev.Data.(event.PermissionRequiredData)
		if !ok || data.ID != permID {
			return
		}
		s.parkAwaitingApproval(taskID, permID, step.Tool)
	})
	defer unsub()

	decision := s.perm.Evaluate(ctx, req, types.ExecutionContext{SessionID: taskID})

	select {
	case <-ctx.Done():
		s.recordOutcome(ctx, actionID, types.OutcomeFailure, "cancelled")
		return nil, true
	default:
	}

	if decision.Outcome != permission.OutcomeApproved && decision.Outcome != permission.OutcomeTimeoutApproved {
		s.recordOutcome(ctx, actionID, types.OutcomeFailure, decision.Reason)
		s.fail(taskID, "rejected_by_user", &permission.RejectedError{SessionID: taskID, Tool: step.Tool, Reason: decision.Reason})
		return nil, false
	}

	// un-park if we parked earlier
	s.clearPendingApproval(taskID)

	output, err := agent.Execute(ctx, task, step.Tool, step.ToolInput)
	if err != nil {
		s.recordOutcome(ctx, actionID, types.OutcomeFailure, err.Error())
		return &ToolResult{Tool: step.Tool, Err: err}, false
	}

	s.recordOutcome(ctx, actionID, types.OutcomeSuccess, "")
	return &ToolResult{Tool: step.Tool, Output: output}, false
}

func (s *Supervisor) parkAwaitingApproval(taskID, permID, tool string) {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok || t.Status.IsTerminal() {
		s.mu.Unlock()
		return
	}
	t.PendingPermission = &types.PermissionRequest{ID: permID, TaskID: taskID, Tool: tool, CreatedAt: s.clock.Now()}
	s.mu.Unlock()

	s.transition(taskID, types.TaskAwaitingApproval)
	s.publish(taskID, event.TaskConfirmation, event.ConfirmationData{TaskID: taskID, PermissionID: permID, Tool: tool})
}

func (s *Supervisor) clearPendingApproval(taskID string) {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	wasParked := ok && t.Status == types.TaskAwaitingApproval
	if ok {
		t.PendingPermission = nil
	}
	s.mu.Unlock()

	if wasParked {
		s.transition(taskID, types.TaskRunning)
	}
}
