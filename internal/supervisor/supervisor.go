// Package supervisor implements the task supervisor (C8): the task state
// machine, event fanout, interact() approval handling, synchronous causal
// recording, and the worker pool that runs tasks concurrently while keeping
// each task's own work strictly sequential.
package supervisor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/causal"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/internal/event"
	"github.com/codecoder/codecoder/internal/permission"
	"github.com/codecoder/codecoder/pkg/types"
)

// ToolResult is what an approved tool call produced, fed back into the
// agent's next reasoning step.
type ToolResult struct {
	Tool   string
	Output any
	Err    error
}

// Step is one unit of agent reasoning: an optional thought, an optional
// proposed tool call, or a final result.
type Step struct {
	Thought   string
	Tool      string
	ToolInput any
	Final     bool
	Output    string
	Err       error
}

// Agent drives one task's reasoning loop. The supervisor calls Next
// repeatedly; when Next proposes a tool call and the permission engine
// approves it, the supervisor calls Execute and feeds the result back into
// the following Next call.
type Agent interface {
	Next(ctx context.Context, task *types.Task, lastResult *ToolResult) (Step, error)
	Execute(ctx context.Context, task *types.Task, tool string, input any) (any, error)
}

// AgentFactory builds the Agent for a given task's agent ID.
type AgentFactory func(agentID string) (Agent, error)

// ListFilter narrows List results.
type ListFilter struct {
	Status types.TaskStatus
	Since  int64
}

// Supervisor owns the set of in-flight and historical tasks.
type Supervisor struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task

	newAgent AgentFactory
	causal   *causal.Store
	perm     *permission.Engine
	clock    *clock.Clock

	work    chan string
	cancels map[string]context.CancelFunc

	fanout *fanout
}

// Config bundles Supervisor construction parameters.
type Config struct {
	Workers    int // default runtime.NumCPU()
	NewAgent   AgentFactory
	Causal     *causal.Store
	Permission *permission.Engine
	Clock      *clock.Clock
}

// New creates a Supervisor and starts its worker pool.
func New(cfg Config) *Supervisor {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	s := &Supervisor{
		tasks:   make(map[string]*types.Task),
		newAgent: cfg.NewAgent,
		causal:  cfg.Causal,
		perm:    cfg.Permission,
		clock:   cfg.Clock,
		work:    make(chan string, 1024),
		cancels: make(map[string]context.CancelFunc),
		fanout:  newFanout(),
	}

	for i := 0; i < workers; i++ {
		go s.workerLoop()
	}

	return s
}

// Create submits a new task; the worker pool picks it up asynchronously.
func (s *Supervisor) Create(agentID, prompt string, taskCtx types.TaskContext) (*types.Task, error) {
	now := s.clock.Now()
	task := &types.Task{
		ID:        s.clock.NewID(clock.PrefixTask),
		AgentID:   agentID,
		Prompt:    prompt,
		Context:   taskCtx,
		Status:    types.TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	created := *task
	s.publish(task.ID, event.TaskCreated, event.TaskCreatedData{Task: &created})

	select {
	case s.work <- task.ID:
	default:
		return nil, fmt.Errorf("supervisor: work queue full: %w", apperr.ErrInternal)
	}

	return task, nil
}

// Get returns a task by ID.
func (s *Supervisor) Get(taskID string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

// List returns tasks matching filter (zero-value filter returns all).
func (s *Supervisor) List(filter ListFilter) []*types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Since != 0 && t.CreatedAt < filter.Since {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// Delete issues a cooperative cancel against a non-terminal task. Cancelling
// an already-terminal task is a no-op.
func (s *Supervisor) Delete(taskID string) error {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	if t.Status.IsTerminal() {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancels[taskID]
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// InteractAction is the closed set of actions interact() accepts.
type InteractAction string

const (
	InteractApprove InteractAction = "approve"
	InteractReject  InteractAction = "reject"
)

// Interact delivers a human decision for a task parked awaiting approval.
// It is idempotent: repeating the same approval is a no-op, and rejecting an
// already-decided request fails with apperr.ErrAlreadyDecided.
func (s *Supervisor) Interact(taskID string, action InteractAction, reply types.PermissionDecision) error {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	if t.Status != types.TaskAwaitingApproval || t.PendingPermission == nil {
		s.mu.Unlock()
		if t.Status.IsTerminal() {
			return fmt.Errorf("task %s already decided: %w", taskID, apperr.ErrAlreadyDecided)
		}
		return fmt.Errorf("task %s has no pending approval: %w", taskID, apperr.ErrAlreadyDecided)
	}
	permID := t.PendingPermission.ID
	alreadyDecided := t.PendingPermission.Decision != ""
	s.mu.Unlock()

	if alreadyDecided {
		if action == InteractReject {
			return fmt.Errorf("permission %s already decided: %w", permID, apperr.ErrAlreadyDecided)
		}
		return nil // repeated approval: no-op
	}

	decision := reply
	if action == InteractReject {
		decision = types.DecisionReject
	} else if decision == "" {
		decision = types.DecisionOnce
	}

	s.mu.Lock()
	if t.PendingPermission != nil {
		t.PendingPermission.Decision = decision
	}
	s.mu.Unlock()

	s.perm.Resolve(permID, taskID, decision)
	return nil
}

// transition moves a task to a new status, refusing to leave a terminal
// state, and publishes task.status_changed.
func (s *Supervisor) transition(taskID string, status types.TaskStatus) bool {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok || t.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	prev := t.Status
	t.Status = status
	t.UpdatedAt = s.clock.Now()
	s.mu.Unlock()

	if prev != status {
		s.publish(taskID, event.TaskStatusChanged, event.TaskStatusChangedData{TaskID: taskID, Status: status})
	}
	return true
}

func (s *Supervisor) publish(taskID string, t event.EventType, data any) {
	ev := event.Event{Type: t, Data: data}
	event.Publish(ev)
	s.fanout.deliver(taskID, ev)
}

// Subscribe registers a bounded-queue subscriber for one task's events. When
// sinceSeq is 0 the subscriber only sees events from this point onward; when
// sinceSeq > 0, retained events with a higher sequence number are replayed
// first, in order and up to the subscriber's queue size, before live events
// continue — see fanout.go for the history/backpressure semantics.
func (s *Supervisor) Subscribe(taskID string, sinceSeq int) (<-chan event.Event, func()) {
	return s.fanout.subscribe(taskID, sinceSeq)
}
