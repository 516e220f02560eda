package commands

import (
	"context"
	"fmt"

	"github.com/codecoder/codecoder/internal/supervisor"
	"github.com/codecoder/codecoder/pkg/types"
)

// stubAgent finalizes every task immediately. Concrete LLM-backed reasoning
// is out of scope here; this keeps the supervisor's task lifecycle and
// event stream exercisable end to end without a provider wired in.
type stubAgent struct {
	agentID string
}

func (a *stubAgent) Next(ctx context.Context, task *types.Task, lastResult *supervisor.ToolResult) (supervisor.Step, error) {
	return supervisor.Step{
		Final:  true,
		Output: fmt.Sprintf("no agent backend configured for %q; task recorded but not executed", a.agentID),
	}, nil
}

func (a *stubAgent) Execute(ctx context.Context, task *types.Task, tool string, input any) (any, error) {
	return nil, fmt.Errorf("stub agent %q cannot execute tool %q", a.agentID, tool)
}

func stubAgentFactory(agentID string) (supervisor.Agent, error) {
	return &stubAgent{agentID: agentID}, nil
}
