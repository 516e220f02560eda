/*
Package supervisor implements the task supervisor: task lifecycle, event
fanout, permission-aware tool execution, and causal graph recording.

# State Machine

A task moves pending -> running -> (awaiting_approval <-> running)* ->
completed | failed | cancelled. Terminal states are sticky; transition
refuses to leave one. Delete issues a cooperative cancel: the task's
context is cancelled and the worker loop stops at its next check,
recording a cancellation outcome and a finish{success:false,
error:"cancelled"} event.

# Driving a Task

The supervisor does not itself call a model or execute tools — it drives
an Agent implementation through a sequential Next/Execute loop:

	task, _ := sup.Create(agentID, prompt, types.TaskContext{Source: types.SourceLocal})

Each Next call returns a Step: a thought (recorded as a causal Decision),
a proposed tool call (recorded as a causal Action and submitted to the
permission engine), or a final result. An approved tool call is executed
via Agent.Execute and its result feeds the following Next call as a
ToolResult, keeping the reasoning loop and tool execution strictly
sequential within one task even though many tasks run concurrently across
the worker pool.

# Approval

When the permission engine defers a tool call to a human, the task
transitions to awaiting_approval and a task.confirmation event is
published. Interact delivers the human's decision; it is idempotent — a
repeated approval is a no-op, and a reject after a decision has already
been recorded fails with apperr.ErrAlreadyDecided.

# Event Fanout

Every task event is published on the global event bus (for process-wide
listeners) and also handed to a per-task bounded fanout: Subscribe returns
a channel for just one task's events. A subscriber whose queue can't keep
up is dropped rather than allowed to block event delivery to the rest of
the task's listeners or to the task itself.
*/
package supervisor
