package event

import "github.com/codecoder/codecoder/pkg/types"

// TaskCreatedData is the data for task.created events.
type TaskCreatedData struct {
	Task *types.Task `json:"task"`
}

// TaskStatusChangedData is the data for task.status_changed events.
type TaskStatusChangedData struct {
	TaskID    string          `json:"taskID"`
	Status    types.TaskStatus `json:"status"`
	Reason    string          `json:"reason,omitempty"`
}

// ThoughtData is the data for a task's "thought" stream event.
type ThoughtData struct {
	TaskID     string `json:"taskID"`
	DecisionID string `json:"decisionID"`
	Reasoning  string `json:"reasoning"`
}

// ToolUseData is the data for a task's "tool_use" stream event.
type ToolUseData struct {
	TaskID   string `json:"taskID"`
	ActionID string `json:"actionID"`
	Tool     string `json:"tool"`
	Input    any    `json:"input"`
}

// OutputData is the data for a task's "output" stream event.
type OutputData struct {
	TaskID string `json:"taskID"`
	Output string `json:"output"`
}

// ConfirmationData is the data for a task's "confirmation" stream event,
// emitted when a tool call is parked awaiting human approval.
type ConfirmationData struct {
	TaskID       string `json:"taskID"`
	PermissionID string `json:"permissionID"`
	Tool         string `json:"tool"`
}

// FinishData is the data for a task's terminal "finish" stream event.
type FinishData struct {
	TaskID  string `json:"taskID"`
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProgressData is the data for a task's "progress" stream event.
type ProgressData struct {
	TaskID     string  `json:"taskID"`
	Stage      string  `json:"stage"`
	Message    string  `json:"message"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// PermissionRequiredData is the data for permission.required events.
type PermissionRequiredData struct {
	ID        string   `json:"id"`
	SessionID string   `json:"sessionID"`
	TaskID    string   `json:"taskID"`
	Tool      string   `json:"tool"`
	Pattern   []string `json:"pattern,omitempty"`
	Title     string   `json:"title"`
}

// PermissionResolvedData is the data for permission.resolved events.
type PermissionResolvedData struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Granted   bool   `json:"granted"`
}

// ConfigReloadedData is the data for config.reloaded events, published after
// a file-watcher-triggered reload successfully replaces the active config.
type ConfigReloadedData struct {
	New *types.Config `json:"new"`
	Old *types.Config `json:"old"`
}

// ConfigReloadErrorData is the data for config.reload_error events, published
// when a reload fails validation or parsing; the previous config is retained.
type ConfigReloadErrorData struct {
	Error string `json:"error"`
}
