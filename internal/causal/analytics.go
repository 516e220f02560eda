package causal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/pkg/types"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "of": true, "in": true,
	"and": true, "or": true, "is": true, "it": true, "for": true, "on": true,
	"with": true, "that": true, "this": true, "be": true, "at": true, "as": true,
}

const similarityThreshold = 0.2

// FindPatterns groups (agent_id, action_type) pairs into pattern rows.
func (s *Store) FindPatterns(ctx context.Context, minOccurrences int, limit int) ([]types.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.agent_id, a.action_type,
		       COUNT(*) occurrences,
		       AVG(d.confidence) avg_confidence,
		       SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END) successes,
		       COUNT(o.id) outcome_count
		FROM decisions d
		JOIN actions a ON a.decision_id = d.id
		LEFT JOIN outcomes o ON o.action_id = a.id
		GROUP BY d.agent_id, a.action_type
		HAVING occurrences >= ?
		ORDER BY occurrences DESC
		LIMIT ?`, types.OutcomeSuccess, minOccurrences, limit)
	if err != nil {
		return nil, fmt.Errorf("causal: find_patterns: %w", apperr.ErrInternal)
	}
	defer rows.Close()

	var out []types.Pattern
	for rows.Next() {
		var p types.Pattern
		var successes, outcomeCount int
		if err := rows.Scan(&p.AgentID, &p.ActionType, &p.Occurrences, &p.AvgConfidence, &successes, &outcomeCount); err != nil {
			return nil, fmt.Errorf("causal: scan pattern: %w", apperr.ErrInternal)
		}
		if outcomeCount > 0 {
			p.SuccessRate = float64(successes) / float64(outcomeCount)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindSimilarDecisions returns decisions whose prompt keyword set has Jaccard
// similarity >= similarityThreshold with the given prompt, sorted descending.
func (s *Store) FindSimilarDecisions(ctx context.Context, prompt string, limit int) ([]types.SimilarDecision, error) {
	target := keywordSet(prompt)
	if len(target) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, agent_id, prompt, reasoning, confidence, timestamp, context
		FROM decisions`)
	if err != nil {
		return nil, fmt.Errorf("causal: find_similar_decisions: %w", apperr.ErrInternal)
	}
	defer rows.Close()

	var candidates []types.SimilarDecision
	for rows.Next() {
		d, err := scanDecisionRow(rows)
		if err != nil {
			return nil, err
		}
		sim := jaccard(target, keywordSet(d.Prompt))
		if sim >= similarityThreshold {
			candidates = append(candidates, types.SimilarDecision{Decision: d, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("causal: iterate decisions: %w", apperr.ErrInternal)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Similarity > candidates[j].Similarity })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// TrendAnalysis compares the most recent periodDays against the prior
// periodDays, reporting success-rate and action-type-distribution change.
func (s *Store) TrendAnalysis(ctx context.Context, now int64, periodDays int) (*types.Trend, error) {
	periodMs := int64(periodDays) * 24 * 60 * 60 * 1000
	afterStart := now - periodMs
	beforeStart := afterStart - periodMs

	afterRate, afterDist, err := s.periodStats(ctx, afterStart, now)
	if err != nil {
		return nil, err
	}
	beforeRate, beforeDist, err := s.periodStats(ctx, beforeStart, afterStart)
	if err != nil {
		return nil, err
	}

	diff := make(map[string]int)
	for t, c := range afterDist {
		diff[t] = c - beforeDist[t]
	}
	for t, c := range beforeDist {
		if _, ok := diff[t]; !ok {
			diff[t] = -c
		}
	}

	return &types.Trend{BeforeSuccessRate: beforeRate, AfterSuccessRate: afterRate, ActionTypeDiff: diff}, nil
}

func (s *Store) periodStats(ctx context.Context, start, end int64) (float64, map[string]int, error) {
	var successes, total int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END),
			COUNT(o.id)
		FROM decisions d
		JOIN actions a ON a.decision_id = d.id
		JOIN outcomes o ON o.action_id = a.id
		WHERE d.timestamp >= ? AND d.timestamp < ?`,
		types.OutcomeSuccess, start, end,
	).Scan(&successes, &total)
	if err != nil {
		return 0, nil, fmt.Errorf("causal: period stats: %w", apperr.ErrInternal)
	}

	dist := make(map[string]int)
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.action_type, COUNT(*)
		FROM decisions d JOIN actions a ON a.decision_id = d.id
		WHERE d.timestamp >= ? AND d.timestamp < ?
		GROUP BY a.action_type`, start, end)
	if err != nil {
		return 0, nil, fmt.Errorf("causal: period dist: %w", apperr.ErrInternal)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			return 0, nil, fmt.Errorf("causal: scan period dist: %w", apperr.ErrInternal)
		}
		dist[t] = c
	}

	rate := 0.0
	if total > 0 {
		rate = float64(successes) / float64(total)
	}
	return rate, dist, rows.Err()
}

// ExtractLessons turns patterns (at least 3 occurrences) whose success rate
// is below 50% into short, human-readable takeaways, lowest success rate
// first.
func (s *Store) ExtractLessons(ctx context.Context, limit int) ([]string, error) {
	patterns, err := s.FindPatterns(ctx, 3, 50)
	if err != nil {
		return nil, err
	}

	sort.Slice(patterns, func(i, j int) bool { return patterns[i].SuccessRate < patterns[j].SuccessRate })

	var lessons []string
	for _, p := range patterns {
		if p.SuccessRate >= 0.5 {
			continue
		}
		lessons = append(lessons, fmt.Sprintf(
			"agent %s's %s actions succeed only %.0f%% of the time across %d occurrences",
			p.AgentID, p.ActionType, p.SuccessRate*100, p.Occurrences))
		if limit > 0 && len(lessons) >= limit {
			break
		}
	}
	return lessons, nil
}

// AgentInsights summarizes one agent's pattern and pattern history.
func (s *Store) AgentInsights(ctx context.Context, agentID string) ([]types.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.agent_id, a.action_type,
		       COUNT(*) occurrences,
		       AVG(d.confidence) avg_confidence,
		       SUM(CASE WHEN o.status = ? THEN 1 ELSE 0 END) successes,
		       COUNT(o.id) outcome_count
		FROM decisions d
		JOIN actions a ON a.decision_id = d.id
		LEFT JOIN outcomes o ON o.action_id = a.id
		WHERE d.agent_id = ?
		GROUP BY a.action_type
		ORDER BY occurrences DESC`, types.OutcomeSuccess, agentID)
	if err != nil {
		return nil, fmt.Errorf("causal: agent_insights: %w", apperr.ErrInternal)
	}
	defer rows.Close()

	var out []types.Pattern
	for rows.Next() {
		var p types.Pattern
		var successes, outcomeCount int
		if err := rows.Scan(&p.AgentID, &p.ActionType, &p.Occurrences, &p.AvgConfidence, &successes, &outcomeCount); err != nil {
			return nil, fmt.Errorf("causal: scan insight: %w", apperr.ErrInternal)
		}
		if outcomeCount > 0 {
			p.SuccessRate = float64(successes) / float64(outcomeCount)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanDecisionRow(rows interface {
	Scan(dest ...any) error
}) (types.Decision, error) {
	var d types.Decision
	var ctxJSON string
	if err := rows.Scan(&d.ID, &d.SessionID, &d.AgentID, &d.Prompt, &d.Reasoning, &d.Confidence, &d.Timestamp, &ctxJSON); err != nil {
		return d, fmt.Errorf("causal: scan decision: %w", apperr.ErrInternal)
	}
	_ = json.Unmarshal([]byte(ctxJSON), &d.Context)
	return d, nil
}

// keywordSet tokenizes text into a lowercase, stop-word-filtered set.
func keywordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if word == "" || stopWords[word] {
			continue
		}
		set[word] = true
	}
	return set
}

// jaccard computes |intersection| / |union| over two keyword sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
