/*
Package event provides a type-safe pub/sub event system for the CodeCoder
task supervisor.

The event system enables decoupled communication between the supervisor,
the permission engine, and any RPC transport subscriber without direct
dependencies between them.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while
maintaining direct-call semantics to preserve type information. It provides
both synchronous and asynchronous event publishing patterns. The supervisor
package wraps this bus with per-subscriber bounded queues; this package only
provides unbounded fanout plus the event type vocabulary.

# Event Types

Task Events:
  - task.created: a new task was submitted
  - task.status_changed: a task transitioned between lifecycle states
  - task.thought: the agent produced reasoning (a Decision)
  - task.tool_use: the agent proposed a tool call (an Action)
  - task.output: incremental task output
  - task.confirmation: a tool call is parked awaiting human approval
  - task.finish: the task reached a terminal state
  - task.progress: a coarse-grained progress update

Permission Events:
  - permission.required: a permission request needs a decision
  - permission.resolved: a permission request was decided

# Basic Usage

	event.Publish(event.Event{
		Type: event.TaskStatusChanged,
		Data: event.TaskStatusChangedData{TaskID: id, Status: types.TaskRunning},
	})

	unsubscribe := event.Subscribe(event.TaskFinish, func(e event.Event) {
		data := e.Data.(event.FinishData)
		log.Info("task finished", "id", data.TaskID)
	})
	defer unsubscribe()

# Subscriber Safety Guidelines

When using PublishSync, subscribers are called synchronously in the
publisher's goroutine and MUST complete quickly, use non-blocking sends, and
never call Publish/PublishSync re-entrantly.

# Thread Safety

The event bus is safe for concurrent use from multiple goroutines.
*/
package event
