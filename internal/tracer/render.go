package tracer

import (
	"fmt"
	"strings"

	"github.com/codecoder/codecoder/pkg/types"
)

// RenderText renders a Report as a fixed-column text view suitable for a
// terminal: a summary header, a depth-indented timeline, and an error
// digest.
func RenderText(r *types.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "trace %s\n", r.TraceID)
	fmt.Fprintf(&b, "  entries=%-6d functions=%-6d api_calls=%-6d errors=%-6d\n",
		r.TotalEntries, r.FunctionCalls, r.APICalls, r.Errors)

	b.WriteString("\ntimeline:\n")
	for _, te := range r.Timeline {
		fmt.Fprintf(&b, "%10d  %s%-20s %s\n", te.Timestamp, strings.Repeat("  ", te.Depth), te.EventType, te.Label)
	}

	if len(r.APICallPairs) > 0 {
		b.WriteString("\napi calls:\n")
		for _, p := range r.APICallPairs {
			fmt.Fprintf(&b, "  %-30s %8dms\n", p.FunctionName, p.DurationMs)
		}
	}

	if len(r.ErrorDigest) > 0 {
		b.WriteString("\nerrors:\n")
		for _, e := range r.ErrorDigest {
			fmt.Fprintf(&b, "  %10d  %s\n", e.Timestamp, e.Message)
			if e.StackExcerpt != "" {
				fmt.Fprintf(&b, "      %s\n", e.StackExcerpt)
			}
		}
	}

	return b.String()
}
