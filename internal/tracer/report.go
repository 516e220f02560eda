package tracer

import (
	"strings"

	"github.com/codecoder/codecoder/pkg/types"
)

// computeReport summarizes a trace buffer's entries at the end of its root
// span: totals, a depth-indented timeline, api-call start/end pairs matched
// by longest function_name prefix, and an error digest.
func (t *Tracer) computeReport(buf *traceBuffer) *types.Report {
	buf.mu.Lock()
	entries := make([]types.TraceEntry, len(buf.entries))
	copy(entries, buf.entries)
	buf.mu.Unlock()

	depth := computeDepths(entries)

	report := &types.Report{
		TotalEntries: len(entries),
	}
	if len(entries) > 0 {
		report.TraceID = entries[0].TraceID
	}

	var apiStarts []types.TraceEntry
	for _, e := range entries {
		switch e.EventType {
		case types.EventFunctionStart:
			report.FunctionCalls++
		case types.EventAPICallStart:
			report.APICalls++
			apiStarts = append(apiStarts, e)
		case types.EventError:
			report.Errors++
			report.ErrorDigest = append(report.ErrorDigest, types.ErrorDigestEntry{
				Timestamp:    e.Timestamp,
				Message:      messageFromPayload(e.Payload),
				StackExcerpt: excerpt(e.StackTrace, 500),
			})
		}

		report.Timeline = append(report.Timeline, types.TimelineEntry{
			Depth:     depth[e.SpanID],
			EventType: e.EventType,
			Label:     labelFor(e),
			Timestamp: e.Timestamp,
		})
	}

	report.APICallPairs = matchAPICallPairs(entries, apiStarts)

	return report
}

// computeDepths reconstructs the span tree from parent_span_id chains
// recorded across entries and assigns each span a root-relative depth.
func computeDepths(entries []types.TraceEntry) map[string]int {
	parent := make(map[string]string)
	for _, e := range entries {
		if _, seen := parent[e.SpanID]; !seen {
			parent[e.SpanID] = e.ParentSpanID
		}
	}

	depth := make(map[string]int, len(parent))
	var resolve func(spanID string) int
	resolve = func(spanID string) int {
		if d, ok := depth[spanID]; ok {
			return d
		}
		p := parent[spanID]
		if p == "" {
			depth[spanID] = 0
			return 0
		}
		d := resolve(p) + 1
		depth[spanID] = d
		return d
	}
	for spanID := range parent {
		resolve(spanID)
	}
	return depth
}

// matchAPICallPairs pairs each api_call_start with the api_call_end whose
// function_name is the longest matching prefix among unmatched ends in the
// same span.
func matchAPICallPairs(entries, starts []types.TraceEntry) []types.APICallPair {
	var ends []types.TraceEntry
	for _, e := range entries {
		if e.EventType == types.EventAPICallEnd {
			ends = append(ends, e)
		}
	}

	used := make([]bool, len(ends))
	var pairs []types.APICallPair
	for _, start := range starts {
		bestIdx := -1
		bestLen := -1
		for i, end := range ends {
			if used[i] || end.SpanID != start.SpanID {
				continue
			}
			n := commonPrefixLen(start.FunctionName, end.FunctionName)
			if n > bestLen {
				bestLen = n
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			continue
		}
		used[bestIdx] = true
		end := ends[bestIdx]
		pairs = append(pairs, types.APICallPair{
			FunctionName: start.FunctionName,
			StartedAt:    start.Timestamp,
			EndedAt:      end.Timestamp,
			DurationMs:   end.Timestamp - start.Timestamp,
		})
	}
	return pairs
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func labelFor(e types.TraceEntry) string {
	if e.FunctionName != "" {
		return e.FunctionName
	}
	return string(e.EventType)
}

func messageFromPayload(payload any) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload.(string); ok {
		return s
	}
	if m, ok := payload.(map[string]any); ok {
		if msg, ok := m["message"].(string); ok {
			return msg
		}
	}
	return ""
}

func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max]
}
