package supervisor

import (
	"context"

	"github.com/codecoder/codecoder/internal/event"
	"github.com/codecoder/codecoder/pkg/types"
)

func (s *Supervisor) workerLoop() {
	for taskID := range s.work {
		s.runTask(taskID)
	}
}

// runTask executes one task's agent loop to completion or cancellation.
// Within a task all work is strictly sequential; across tasks the worker
// pool runs several of these concurrently.
func (s *Supervisor) runTask(taskID string) {
	task, err := s.Get(taskID)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[taskID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, taskID)
		s.mu.Unlock()
		cancel()
	}()

	if !s.transition(taskID, types.TaskRunning) {
		return
	}

	agent, err := s.newAgent(task.AgentID)
	if err != nil {
		s.fail(taskID, "unknown_agent", err)
		return
	}

	var lastResult *ToolResult
	var lastDecisionID string
	for {
		select {
		case <-ctx.Done():
			s.cancelTask(taskID)
			return
		default:
		}

		step, err := agent.Next(ctx, task, lastResult)
		if err != nil {
			if ctx.Err() != nil {
				s.cancelTask(taskID)
				return
			}
			s.fail(taskID, "agent_error", err)
			return
		}

		if step.Thought != "" {
			decisionID, derr := s.recordDecision(ctx, task, step.Thought)
			if derr == nil {
				s.publish(taskID, event.TaskThought, event.ThoughtData{TaskID: taskID, DecisionID: decisionID, Reasoning: step.Thought})
				lastDecisionID = decisionID
			}
		}

		if step.Final {
			if step.Err != nil {
				s.fail(taskID, "agent_error", step.Err)
			} else {
				s.succeed(taskID, step.Output)
			}
			return
		}

		if step.Tool == "" {
			lastResult = nil
			continue
		}

		result, cancelled := s.runToolCall(ctx, taskID, task, agent, step, lastDecisionID)
		if cancelled {
			s.cancelTask(taskID)
			return
		}
		lastResult = result
	}
}

func (s *Supervisor) cancelTask(taskID string) {
	if !s.transition(taskID, types.TaskCancelled) {
		return
	}
	s.publish(taskID, event.TaskFinish, event.FinishData{TaskID: taskID, Success: false, Error: "cancelled"})
}

func (s *Supervisor) fail(taskID, reason string, err error) {
	s.mu.Lock()
	if t, ok := s.tasks[taskID]; ok && !t.Status.IsTerminal() {
		t.Error = err.Error()
		t.ErrorCode = reason
	}
	s.mu.Unlock()
	if !s.transition(taskID, types.TaskFailed) {
		return
	}
	s.publish(taskID, event.TaskFinish, event.FinishData{TaskID: taskID, Success: false, Error: err.Error()})
}

func (s *Supervisor) succeed(taskID, output string) {
	s.mu.Lock()
	if t, ok := s.tasks[taskID]; ok && !t.Status.IsTerminal() {
		t.Output = output
	}
	s.mu.Unlock()
	if !s.transition(taskID, types.TaskCompleted) {
		return
	}
	s.publish(taskID, event.TaskFinish, event.FinishData{TaskID: taskID, Success: true, Output: output})
}
