package causal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "causal.db"), clock.New())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordDecisionActionOutcome_Chain(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	decID, err := s.RecordDecision(ctx, types.Decision{
		SessionID: "sess-1", AgentID: "agent-1", Prompt: "fix the bug", Reasoning: "because x", Confidence: 0.9,
	})
	require.NoError(t, err)

	actID, err := s.RecordAction(ctx, decID, types.Action{ActionType: types.ActionCodeChange, Description: "edit file"})
	require.NoError(t, err)

	_, err = s.RecordOutcome(ctx, actID, types.Outcome{Status: types.OutcomeSuccess, Description: "tests pass"})
	require.NoError(t, err)

	chain, err := s.GetChain(ctx, decID)
	require.NoError(t, err)
	assert.Equal(t, decID, chain.Decision.ID)
	require.Len(t, chain.Actions, 1)
	require.Len(t, chain.Outcomes, 1)
	assert.GreaterOrEqual(t, len(chain.Edges), 2)
}

func TestStore_RecordAction_UnknownDecisionFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.RecordAction(ctx, "dec_nonexistent", types.Action{ActionType: types.ActionOther})
	assert.Error(t, err)
}

func TestStore_Query_OrderedByTimestampDescending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.RecordDecision(ctx, types.Decision{SessionID: "s", AgentID: "a", Prompt: "p", Confidence: 0.5})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	results, err := s.Query(ctx, types.QueryFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)
	// Most recently created decision first.
	assert.Equal(t, ids[2], results[0].ID)
}

func TestStore_Query_LimitClampedToMax(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	results, err := s.Query(ctx, types.QueryFilter{Limit: 5000})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_Stats_SuccessRate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	decID, err := s.RecordDecision(ctx, types.Decision{SessionID: "s", AgentID: "agent-x", Prompt: "p", Confidence: 0.5})
	require.NoError(t, err)
	actID, err := s.RecordAction(ctx, decID, types.Action{ActionType: types.ActionToolExecution})
	require.NoError(t, err)
	_, err = s.RecordOutcome(ctx, actID, types.Outcome{Status: types.OutcomeSuccess})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDecisions)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestStore_FindPatterns_GroupsByAgentAndActionType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 4; i++ {
		decID, err := s.RecordDecision(ctx, types.Decision{SessionID: "s", AgentID: "agent-y", Prompt: "p", Confidence: 0.7})
		require.NoError(t, err)
		actID, err := s.RecordAction(ctx, decID, types.Action{ActionType: types.ActionSearch})
		require.NoError(t, err)
		status := types.OutcomeSuccess
		if i == 0 {
			status = types.OutcomeFailure
		}
		_, err = s.RecordOutcome(ctx, actID, types.Outcome{Status: status})
		require.NoError(t, err)
	}

	patterns, err := s.FindPatterns(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 4, patterns[0].Occurrences)
	assert.InDelta(t, 0.75, patterns[0].SuccessRate, 0.001)
}

func TestStore_FindSimilarDecisions_JaccardThreshold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.RecordDecision(ctx, types.Decision{SessionID: "s", AgentID: "a", Prompt: "refactor the payment module", Confidence: 0.5})
	require.NoError(t, err)
	_, err = s.RecordDecision(ctx, types.Decision{SessionID: "s", AgentID: "a", Prompt: "totally unrelated topic about cooking", Confidence: 0.5})
	require.NoError(t, err)

	similar, err := s.FindSimilarDecisions(ctx, "refactor payment module code", 10)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Contains(t, similar[0].Decision.Prompt, "payment")
}

func TestStore_ExtractLessons_FlagsLowSuccessPatterns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		decID, err := s.RecordDecision(ctx, types.Decision{SessionID: "s", AgentID: "flaky-agent", Prompt: "p", Confidence: 0.5})
		require.NoError(t, err)
		actID, err := s.RecordAction(ctx, decID, types.Action{ActionType: types.ActionAPICall})
		require.NoError(t, err)
		status := types.OutcomeFailure
		if i == 0 {
			status = types.OutcomeSuccess
		}
		_, err = s.RecordOutcome(ctx, actID, types.Outcome{Status: status})
		require.NoError(t, err)
	}

	lessons, err := s.ExtractLessons(ctx, 5)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Contains(t, lessons[0], "flaky-agent")
}
