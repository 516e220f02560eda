package rpc

import (
	"context"
	"encoding/json"

	"github.com/codecoder/codecoder/internal/causal"
	"github.com/codecoder/codecoder/internal/scanner"
	"github.com/codecoder/codecoder/internal/supervisor"
	"github.com/codecoder/codecoder/internal/vault"
	"github.com/codecoder/codecoder/pkg/types"
)

// RegisterTaskMethods wires the task.* namespace onto sup and returns the
// ToolSpecs an MCP surface can expose for it.
func RegisterTaskMethods(d *Dispatcher, sup *supervisor.Supervisor) []ToolSpec {
	d.Register("task.create", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			AgentID string            `json:"agent_id"`
			Prompt  string            `json:"prompt"`
			Context types.TaskContext `json:"context"`
		}](args)
		if err != nil {
			return nil, err
		}
		return sup.Create(in.AgentID, in.Prompt, in.Context)
	})

	d.Register("task.get", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			ID string `json:"id"`
		}](args)
		if err != nil {
			return nil, err
		}
		return sup.Get(in.ID)
	})

	d.Register("task.list", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			Status types.TaskStatus `json:"status,omitempty"`
			Since  int64            `json:"since,omitempty"`
		}](args)
		if err != nil {
			return nil, err
		}
		return sup.List(supervisor.ListFilter{Status: in.Status, Since: in.Since}), nil
	})

	d.Register("task.delete", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			ID string `json:"id"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, sup.Delete(in.ID)
	})

	d.Register("task.interact", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			ID     string                    `json:"id"`
			Action supervisor.InteractAction `json:"action"`
			Reply  types.PermissionDecision  `json:"reply,omitempty"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, sup.Interact(in.ID, in.Action, in.Reply)
	})

	return []ToolSpec{
		{Name: "task.create", Method: "task.create", Description: "Create and submit a new agent task."},
		{Name: "task.get", Method: "task.get", Description: "Fetch one task by id."},
		{Name: "task.list", Method: "task.list", Description: "List tasks, optionally filtered by status."},
		{Name: "task.delete", Method: "task.delete", Description: "Cancel a non-terminal task."},
		{Name: "task.interact", Method: "task.interact", Description: "Approve or reject a task's pending permission request."},
	}
}

// RegisterVaultMethods wires the vault.* namespace onto v.
func RegisterVaultMethods(d *Dispatcher, v *vault.Vault) []ToolSpec {
	d.Register("vault.add", func(ctx context.Context, args json.RawMessage) (any, error) {
		cred, err := Decode[types.Credential](args)
		if err != nil {
			return nil, err
		}
		return v.Add(ctx, cred)
	})

	d.Register("vault.get", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			ID string `json:"id"`
		}](args)
		if err != nil {
			return nil, err
		}
		return v.Get(ctx, in.ID)
	})

	d.Register("vault.list", func(ctx context.Context, args json.RawMessage) (any, error) {
		return v.List(ctx)
	})

	d.Register("vault.delete", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			ID string `json:"id"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, v.Delete(ctx, in.ID)
	})

	d.Register("vault.resolve_for_url", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			URL string `json:"url"`
		}](args)
		if err != nil {
			return nil, err
		}
		return v.ResolveForURL(ctx, in.URL)
	})

	return []ToolSpec{
		{Name: "vault.add", Method: "vault.add", Description: "Add a credential to the vault."},
		{Name: "vault.get", Method: "vault.get", Description: "Fetch one credential by id (includes secret material)."},
		{Name: "vault.list", Method: "vault.list", Description: "List redacted credential summaries."},
		{Name: "vault.delete", Method: "vault.delete", Description: "Delete a credential."},
		{Name: "vault.resolve_for_url", Method: "vault.resolve_for_url", Description: "Resolve the best-matching credential for a URL."},
	}
}

// RegisterScannerMethods wires the scanner.* namespace onto sc.
func RegisterScannerMethods(d *Dispatcher, sc *scanner.Scanner) []ToolSpec {
	d.Register("scanner.scan", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			Text string `json:"text"`
		}](args)
		if err != nil {
			return nil, err
		}
		return sc.Scan(in.Text), nil
	})

	d.Register("scanner.quick_check", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			Text string `json:"text"`
		}](args)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"detected": sc.QuickCheck(in.Text)}, nil
	})

	d.Register("scanner.sanitize", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			Text string `json:"text"`
		}](args)
		if err != nil {
			return nil, err
		}
		return map[string]string{"sanitized": sc.Sanitize(in.Text)}, nil
	})

	return []ToolSpec{
		{Name: "scanner.scan", Method: "scanner.scan", Description: "Classify text for prompt-injection patterns."},
		{Name: "scanner.quick_check", Method: "scanner.quick_check", Description: "Fast boolean prompt-injection check."},
		{Name: "scanner.sanitize", Method: "scanner.sanitize", Description: "Strip known prompt-injection delimiters and phrases from text."},
	}
}

// RegisterCausalMethods wires the causal.* namespace onto s.
func RegisterCausalMethods(d *Dispatcher, s *causal.Store) []ToolSpec {
	d.Register("causal.get_chain", func(ctx context.Context, args json.RawMessage) (any, error) {
		in, err := Decode[struct {
			DecisionID string `json:"decision_id"`
		}](args)
		if err != nil {
			return nil, err
		}
		return s.GetChain(ctx, in.DecisionID)
	})

	d.Register("causal.query", func(ctx context.Context, args json.RawMessage) (any, error) {
		filter, err := Decode[types.QueryFilter](args)
		if err != nil {
			return nil, err
		}
		return s.Query(ctx, filter)
	})

	d.Register("causal.stats", func(ctx context.Context, args json.RawMessage) (any, error) {
		return s.Stats(ctx)
	})

	return []ToolSpec{
		{Name: "causal.get_chain", Method: "causal.get_chain", Description: "Fetch the decision/action/outcome chain for a decision."},
		{Name: "causal.query", Method: "causal.query", Description: "Query decisions by filter."},
		{Name: "causal.stats", Method: "causal.stats", Description: "Summary statistics over the causal graph."},
	}
}
