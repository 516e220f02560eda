/*
Package tracer implements the observability tracer (C2): trace-context
propagation, a JSONL sink, and end-of-run report generation.

# Trace contexts

A trace context scopes one logical unit of work and propagates implicitly
through context.Context. RunWithContext starts a new trace (fresh trace_id,
root span_id); RunInChildSpan mints a new span_id under the caller's
trace_id, setting parent_span_id to the caller's span_id. Log appends an
entry to the current context's buffer and writes it to the sink; it is a
no-op outside a trace context, below the configured level, or rejected by
sampling.

# Reports

When the function passed to RunWithContext returns, computeReport
summarizes every entry recorded anywhere in the trace (including child
spans): total entries, function-call and api-call counts, error count, a
depth-indented timeline (depth reconstructed from parent_span_id chains),
api_call_start/api_call_end pairs matched by longest function_name prefix
within the same span, and an error digest with truncated stack excerpts.
RenderText renders the same Report as fixed-column text for a terminal.

# Sink

Entries are appended as line-delimited JSON to
<workspace>/log/observability/trace-<start-timestamp-ms>.jsonl. At most the
10 most recent trace files are kept; older ones are pruned on tracer init.
Each write has a 200ms budget — when a write doesn't complete in time the
caller stops waiting and DroppedCount is incremented (the pending write
still finishes in the background), since observability must never block
or fail the traced work.
*/
package tracer
