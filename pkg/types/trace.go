package types

// TraceEventType is the closed set of tracer event kinds.
type TraceEventType string

const (
	EventFunctionStart TraceEventType = "function_start"
	EventFunctionEnd   TraceEventType = "function_end"
	EventBranch        TraceEventType = "branch"
	EventLoop          TraceEventType = "loop"
	EventAPICallStart  TraceEventType = "api_call_start"
	EventAPICallEnd    TraceEventType = "api_call_end"
	EventError         TraceEventType = "error"
	EventPoint         TraceEventType = "point"
)

// TraceEntry is one line of the JSONL trace sink.
type TraceEntry struct {
	Timestamp     int64          `json:"timestamp"`
	TraceID       string         `json:"trace_id"`
	SpanID        string         `json:"span_id"`
	ParentSpanID  string         `json:"parent_span_id,omitempty"`
	EventType     TraceEventType `json:"event_type"`
	Service       string         `json:"service"`
	FunctionName  string         `json:"function_name,omitempty"`
	Payload       any            `json:"payload,omitempty"`
	DurationMs    *int64         `json:"duration_ms,omitempty"`
	StackTrace    string         `json:"stack_trace,omitempty"`
}

// TraceContext scopes one logical unit of work.
type TraceContext struct {
	TraceID      string       `json:"trace_id"`
	SpanID       string       `json:"span_id"`
	ParentSpanID string       `json:"parent_span_id,omitempty"`
	Service      string       `json:"service"`
	StartedAt    int64        `json:"started_at"`
	Entries      []TraceEntry `json:"entries"`
}

// APICallPair is one matched start/end pair in a report timeline.
type APICallPair struct {
	FunctionName string `json:"function_name"`
	StartedAt    int64  `json:"started_at"`
	EndedAt      int64  `json:"ended_at"`
	DurationMs   int64  `json:"duration_ms"`
}

// TimelineEntry is one depth-indented report row.
type TimelineEntry struct {
	Depth     int            `json:"depth"`
	EventType TraceEventType `json:"event_type"`
	Label     string         `json:"label"`
	Timestamp int64          `json:"timestamp"`
}

// ErrorDigestEntry summarizes one error entry in the report.
type ErrorDigestEntry struct {
	Timestamp  int64  `json:"timestamp"`
	Message    string `json:"message"`
	StackExcerpt string `json:"stack_excerpt,omitempty"`
}

// Report is the end-of-root-span computed summary.
type Report struct {
	TraceID       string             `json:"trace_id"`
	TotalEntries  int                `json:"total_entries"`
	FunctionCalls int                `json:"function_calls"`
	APICalls      int                `json:"api_calls"`
	Errors        int                `json:"errors"`
	Timeline      []TimelineEntry    `json:"timeline"`
	APICallPairs  []APICallPair      `json:"api_call_pairs"`
	ErrorDigest   []ErrorDigestEntry `json:"error_digest"`
}
