package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/causal"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/internal/event"
	"github.com/codecoder/codecoder/internal/permission"
	"github.com/codecoder/codecoder/pkg/types"
)

type fakeAgent struct {
	steps     []Step
	idx       int
	executeFn func(tool string, input any) (any, error)
}

func (f *fakeAgent) Next(ctx context.Context, task *types.Task, lastResult *ToolResult) (Step, error) {
	if f.idx >= len(f.steps) {
		return Step{Final: true, Output: "done"}, nil
	}
	s := f.steps[f.idx]
	f.idx++
	return s, nil
}

func (f *fakeAgent) Execute(ctx context.Context, task *types.Task, tool string, input any) (any, error) {
	if f.executeFn != nil {
		return f.executeFn(tool, input)
	}
	return "ok", nil
}

func newTestSupervisor(t *testing.T, agent Agent, cfg types.PermissionConfig) *Supervisor {
	t.Helper()
	event.Reset()

	dbPath := filepath.Join(t.TempDir(), "causal.db")
	store, err := causal.Open(dbPath, clock.New())
	if err != nil {
		t.Fatalf("open causal store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := permission.NewEngine(cfg, clock.New())

	return New(Config{
		Workers: 2,
		NewAgent: func(agentID string) (Agent, error) {
			return agent, nil
		},
		Causal:     store,
		Permission: eng,
		Clock:      clock.New(),
	})
}

func waitForStatus(t *testing.T, s *Supervisor, taskID string, want types.TaskStatus, timeout time.Duration) *types.Task {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		task, err := s.Get(taskID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if task.Status == want {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	task, _ := s.Get(taskID)
	t.Fatalf("timed out waiting for status %v, last seen %+v", want, task)
	return nil
}

func TestSupervisor_SimpleTaskCompletes(t *testing.T) {
	agent := &fakeAgent{steps: []Step{{Thought: "thinking"}, {Final: true, Output: "all done"}}}
	s := newTestSupervisor(t, agent, permission.SafeOnlyConfig())

	task, err := s.Create("assistant", "do something", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	final := waitForStatus(t, s, task.ID, types.TaskCompleted, 2*time.Second)
	if final.Output != "all done" {
		t.Errorf("output = %q, want %q", final.Output, "all done")
	}
}

func TestSupervisor_ApprovedToolCallExecutes(t *testing.T) {
	executed := false
	agent := &fakeAgent{
		steps: []Step{{Thought: "reading a file", Tool: "Read", ToolInput: "/tmp/x"}, {Final: true, Output: "read ok"}},
		executeFn: func(tool string, input any) (any, error) {
			executed = true
			return "contents", nil
		},
	}
	s := newTestSupervisor(t, agent, permission.SafeOnlyConfig())

	task, err := s.Create("assistant", "read a file", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	waitForStatus(t, s, task.ID, types.TaskCompleted, 2*time.Second)
	if !executed {
		t.Error("expected approved tool call to execute")
	}
}

func TestSupervisor_DeferredToolCallParksThenResumesOnApproval(t *testing.T) {
	agent := &fakeAgent{
		steps: []Step{{Thought: "writing a file", Tool: "Write", ToolInput: "/tmp/out"}, {Final: true, Output: "wrote ok"}},
	}
	cfg := types.PermissionConfig{AllowTools: []string{"Read"}, Threshold: types.RiskLow.String()}
	s := newTestSupervisor(t, agent, cfg)

	task, err := s.Create("assistant", "write a file", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	parked := waitForStatus(t, s, task.ID, types.TaskAwaitingApproval, 2*time.Second)
	if parked.PendingPermission == nil {
		t.Fatal("expected a pending permission on the parked task")
	}

	if err := s.Interact(task.ID, InteractApprove, types.DecisionOnce); err != nil {
		t.Fatalf("interact: %v", err)
	}

	final := waitForStatus(t, s, task.ID, types.TaskCompleted, 2*time.Second)
	if final.Output != "wrote ok" {
		t.Errorf("output = %q, want %q", final.Output, "wrote ok")
	}
}

func TestSupervisor_DeferredToolCallRejectedFailsTask(t *testing.T) {
	agent := &fakeAgent{
		steps: []Step{{Thought: "writing a file", Tool: "Write", ToolInput: "/tmp/out"}, {Final: true, Output: "wrote ok"}},
	}
	cfg := types.PermissionConfig{AllowTools: []string{"Read"}, Threshold: types.RiskLow.String()}
	s := newTestSupervisor(t, agent, cfg)

	task, err := s.Create("assistant", "write a file", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	waitForStatus(t, s, task.ID, types.TaskAwaitingApproval, 2*time.Second)

	if err := s.Interact(task.ID, InteractReject, types.DecisionReject); err != nil {
		t.Fatalf("interact: %v", err)
	}

	final := waitForStatus(t, s, task.ID, types.TaskFailed, 2*time.Second)
	if final.ErrorCode != "rejected_by_user" {
		t.Errorf("errorCode = %q, want rejected_by_user", final.ErrorCode)
	}
}

func TestSupervisor_InteractIsIdempotent(t *testing.T) {
	agent := &fakeAgent{
		steps: []Step{{Thought: "writing a file", Tool: "Write", ToolInput: "/tmp/out"}, {Final: true, Output: "wrote ok"}},
	}
	cfg := types.PermissionConfig{AllowTools: []string{"Read"}, Threshold: types.RiskLow.String()}
	s := newTestSupervisor(t, agent, cfg)

	task, err := s.Create("assistant", "write a file", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	waitForStatus(t, s, task.ID, types.TaskAwaitingApproval, 2*time.Second)

	if err := s.Interact(task.ID, InteractApprove, types.DecisionOnce); err != nil {
		t.Fatalf("first interact: %v", err)
	}
	waitForStatus(t, s, task.ID, types.TaskCompleted, 2*time.Second)

	if err := s.Interact(task.ID, InteractApprove, types.DecisionOnce); !errors.Is(err, apperr.ErrAlreadyDecided) {
		t.Errorf("interact on a completed task = %v, want apperr.ErrAlreadyDecided", err)
	}
}

func TestSupervisor_DeleteCancelsRunningTask(t *testing.T) {
	blockCh := make(chan struct{})
	agent := &fakeAgent{}
	agent.executeFn = func(tool string, input any) (any, error) { return "ok", nil }

	s := newTestSupervisor(t, agent, permission.SafeOnlyConfig())
	agent.steps = []Step{{Thought: "about to block"}}

	// Override Next via a wrapping agent that blocks on the second call until
	// the task's context is cancelled.
	blocking := &blockingAgent{inner: agent, block: blockCh}
	s.newAgent = func(agentID string) (Agent, error) { return blocking, nil }

	task, err := s.Create("assistant", "long task", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	time.Sleep(20 * time.Millisecond) // let it reach the blocking Next call
	if err := s.Delete(task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	waitForStatus(t, s, task.ID, types.TaskCancelled, 2*time.Second)
	close(blockCh)
}

// blockingAgent returns the inner agent's first step, then blocks in Next
// until ctx is cancelled or its block channel closes, simulating a long
// running reasoning step that Delete must be able to interrupt.
type blockingAgent struct {
	inner   *fakeAgent
	block   chan struct{}
	served1 bool
}

func (b *blockingAgent) Next(ctx context.Context, task *types.Task, lastResult *ToolResult) (Step, error) {
	if !b.served1 {
		b.served1 = true
		return b.inner.Next(ctx, task, lastResult)
	}
	select {
	case <-ctx.Done():
		return Step{}, ctx.Err()
	case <-b.block:
		return Step{Final: true, Output: "unblocked"}, nil
	}
}

func (b *blockingAgent) Execute(ctx context.Context, task *types.Task, tool string, input any) (any, error) {
	return b.inner.Execute(ctx, task, tool, input)
}

func TestSupervisor_RepeatedIdenticalToolCallFailsAsDoomLoop(t *testing.T) {
	agent := &fakeAgent{
		steps: []Step{
			{Tool: "Read", ToolInput: "/tmp/x"},
			{Tool: "Read", ToolInput: "/tmp/x"},
			{Tool: "Read", ToolInput: "/tmp/x"},
			{Final: true, Output: "done"},
		},
	}
	s := newTestSupervisor(t, agent, permission.SafeOnlyConfig())

	task, err := s.Create("assistant", "loop forever", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	final := waitForStatus(t, s, task.ID, types.TaskFailed, 2*time.Second)
	if final.ErrorCode != "doom_loop_detected" {
		t.Errorf("errorCode = %q, want doom_loop_detected", final.ErrorCode)
	}
	if final.Error == "" {
		t.Error("expected a non-empty error message on the failed task")
	}
}

// TestSupervisor_SecondDistinctWriteReprompsAfterOnceApproval exercises a
// "once" approval covering only the request it was granted for: a second,
// distinct Write to a different path must park the task and defer to a
// human again rather than being auto-approved by the first grant.
func TestSupervisor_SecondDistinctWriteReprompsAfterOnceApproval(t *testing.T) {
	agent := &fakeAgent{
		steps: []Step{
			{Thought: "write file a", Tool: "Write", ToolInput: "/tmp/a"},
			{Thought: "write file b", Tool: "Write", ToolInput: "/tmp/b"},
			{Final: true, Output: "wrote both"},
		},
	}
	cfg := types.PermissionConfig{AllowTools: []string{"Read"}, Threshold: types.RiskLow.String()}
	s := newTestSupervisor(t, agent, cfg)

	task, err := s.Create("assistant", "write two files", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	first := waitForStatus(t, s, task.ID, types.TaskAwaitingApproval, 2*time.Second)
	firstPermID := first.PendingPermission.ID

	if err := s.Interact(task.ID, InteractApprove, types.DecisionOnce); err != nil {
		t.Fatalf("first interact: %v", err)
	}

	second := waitForStatus(t, s, task.ID, types.TaskAwaitingApproval, 2*time.Second)
	if second.PendingPermission == nil {
		t.Fatal("expected the second distinct Write to park awaiting approval again")
	}
	if second.PendingPermission.ID == firstPermID {
		t.Fatal("second pending permission should be a fresh request, not the first one replayed")
	}

	if err := s.Interact(task.ID, InteractApprove, types.DecisionOnce); err != nil {
		t.Fatalf("second interact: %v", err)
	}

	final := waitForStatus(t, s, task.ID, types.TaskCompleted, 2*time.Second)
	if final.Output != "wrote both" {
		t.Errorf("output = %q, want %q", final.Output, "wrote both")
	}
}

// TestSupervisor_CriticalBashTaskFailsWithoutEverAskingAHuman exercises a
// critical-risk Bash command end to end: the decision procedure rejects it
// outright (never deferring to a human, per the permission engine's
// critical-always-rejects invariant), and the task surfaces that as a
// failure.
func TestSupervisor_CriticalBashTaskFailsWithoutEverAskingAHuman(t *testing.T) {
	agent := &fakeAgent{
		steps: []Step{
			{Thought: "clean up", Tool: "Bash", ToolInput: "sudo rm -rf /"},
			{Final: true, Output: "done"},
		},
	}
	cfg := types.PermissionConfig{AllowTools: []string{"Bash"}, Threshold: types.RiskHigh.String()}
	s := newTestSupervisor(t, agent, cfg)

	asked := false
	unsub := event.Subscribe(event.PermissionRequired, func(ev event.Event) { asked = true })
	defer unsub()

	task, err := s.Create("assistant", "run a destructive command", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	final := waitForStatus(t, s, task.ID, types.TaskFailed, 2*time.Second)
	if final.ErrorCode != "rejected_by_user" {
		t.Errorf("errorCode = %q, want rejected_by_user", final.ErrorCode)
	}
	if final.PendingPermission != nil {
		t.Error("a critical-risk command must never be left awaiting human approval")
	}
	if asked {
		t.Error("critical risk must reject before a human is ever consulted")
	}
}

// TestSupervisor_GetChainReturnsBothActionsForATwoToolCallTask exercises the
// causal graph end to end: a single decision that drives two approved tool
// calls should produce exactly two actions and two outcomes when the chain
// is fetched back out.
func TestSupervisor_GetChainReturnsBothActionsForATwoToolCallTask(t *testing.T) {
	agent := &fakeAgent{
		steps: []Step{
			{Thought: "read two files", Tool: "Read", ToolInput: "/tmp/a"},
			{Tool: "Read", ToolInput: "/tmp/b"}, // no new thought: same decision drives this action too
			{Final: true, Output: "read both"},
		},
	}
	s := newTestSupervisor(t, agent, permission.SafeOnlyConfig())

	task, err := s.Create("assistant", "read two files", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForStatus(t, s, task.ID, types.TaskCompleted, 2*time.Second)

	decisions, err := s.causal.Query(context.Background(), types.QueryFilter{SessionID: task.ID})
	if err != nil {
		t.Fatalf("query decisions: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("got %d decisions for the task's session, want exactly 1", len(decisions))
	}

	chain, err := s.causal.GetChain(context.Background(), decisions[0].ID)
	if err != nil {
		t.Fatalf("get chain: %v", err)
	}
	if len(chain.Actions) != 2 {
		t.Fatalf("got %d actions, want exactly 2", len(chain.Actions))
	}
	if len(chain.Outcomes) != 2 {
		t.Fatalf("got %d outcomes, want exactly 2", len(chain.Outcomes))
	}
}

func TestSupervisor_ListFiltersByStatus(t *testing.T) {
	agent := &fakeAgent{steps: []Step{{Final: true, Output: "done"}}}
	s := newTestSupervisor(t, agent, permission.SafeOnlyConfig())

	task, err := s.Create("assistant", "quick task", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitForStatus(t, s, task.ID, types.TaskCompleted, 2*time.Second)

	completed := s.List(ListFilter{Status: types.TaskCompleted})
	found := false
	for _, tk := range completed {
		if tk.ID == task.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected completed task to show up in status-filtered list")
	}

	pending := s.List(ListFilter{Status: types.TaskPending})
	for _, tk := range pending {
		if tk.ID == task.ID {
			t.Error("completed task should not appear under pending filter")
		}
	}
}

func TestSupervisor_SubscribeReceivesTaskEvents(t *testing.T) {
	agent := &fakeAgent{steps: []Step{{Thought: "hi"}, {Final: true, Output: "done"}}}
	s := newTestSupervisor(t, agent, permission.SafeOnlyConfig())

	task, err := s.Create("assistant", "subscribe test", types.TaskContext{Source: types.SourceLocal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ch, unsub := s.Subscribe(task.ID, 0)
	defer unsub()

	sawFinish := false
	deadline := time.After(2 * time.Second)
	for !sawFinish {
		select {
		case ev := <-ch:
			if ev.Type == event.TaskFinish {
				sawFinish = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for finish event")
		}
	}
}
