package causal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/pkg/types"
)

const maxQueryLimit = 1000

// GetChain returns a decision, every action it caused, every outcome those
// actions produced, and every edge among them.
func (s *Store) GetChain(ctx context.Context, decisionID string) (*types.Chain, error) {
	d, err := s.getDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}

	actions, err := s.actionsForDecision(ctx, decisionID)
	if err != nil {
		return nil, err
	}

	var outcomes []types.Outcome
	for _, a := range actions {
		os, err := s.outcomesForAction(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, os...)
	}

	nodeIDs := []string{decisionID}
	for _, a := range actions {
		nodeIDs = append(nodeIDs, a.ID)
	}
	for _, o := range outcomes {
		nodeIDs = append(nodeIDs, o.ID)
	}
	edges, err := s.edgesAmong(ctx, nodeIDs)
	if err != nil {
		return nil, err
	}

	return &types.Chain{Decision: *d, Actions: actions, Outcomes: outcomes, Edges: edges}, nil
}

func (s *Store) getDecision(ctx context.Context, id string) (*types.Decision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, agent_id, prompt, reasoning, confidence, timestamp, context
		FROM decisions WHERE id = ?`, id)
	var d types.Decision
	var ctxJSON string
	if err := row.Scan(&d.ID, &d.SessionID, &d.AgentID, &d.Prompt, &d.Reasoning, &d.Confidence, &d.Timestamp, &ctxJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("decision %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("causal: scan decision: %w", apperr.ErrInternal)
	}
	_ = json.Unmarshal([]byte(ctxJSON), &d.Context)
	return &d, nil
}

func (s *Store) actionsForDecision(ctx context.Context, decisionID string) ([]types.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, decision_id, action_type, description, input, output, timestamp, duration_ms
		FROM actions WHERE decision_id = ? ORDER BY timestamp ASC`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("causal: query actions: %w", apperr.ErrInternal)
	}
	defer rows.Close()

	var out []types.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) outcomesForAction(ctx context.Context, actionID string) ([]types.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_id, status, description, metrics, feedback, timestamp
		FROM outcomes WHERE action_id = ? ORDER BY timestamp ASC`, actionID)
	if err != nil {
		return nil, fmt.Errorf("causal: query outcomes: %w", apperr.ErrInternal)
	}
	defer rows.Close()

	var out []types.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) edgesAmong(ctx context.Context, nodeIDs []string) ([]types.Edge, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(nodeIDs)), ",")
	args := make([]any, len(nodeIDs))
	for i, id := range nodeIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, source_node, target_node, relationship, weight
		FROM edges WHERE source_node IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("causal: query edges: %w", apperr.ErrInternal)
	}
	defer rows.Close()

	var out []types.Edge
	for rows.Next() {
		var e types.Edge
		if err := rows.Scan(&e.ID, &e.SourceNode, &e.TargetNode, &e.Relationship, &e.Weight); err != nil {
			return nil, fmt.Errorf("causal: scan edge: %w", apperr.ErrInternal)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Query returns decisions matching filter, ordered by timestamp descending
// (secondary order: id, for determinism). Limit is clamped to maxQueryLimit.
func (s *Store) Query(ctx context.Context, filter types.QueryFilter) ([]types.Decision, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	var where []string
	var args []any
	if filter.AgentID != "" {
		where = append(where, "d.agent_id = ?")
		args = append(args, filter.AgentID)
	}
	if filter.SessionID != "" {
		where = append(where, "d.session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Since > 0 {
		where = append(where, "d.timestamp >= ?")
		args = append(args, filter.Since)
	}
	if filter.Until > 0 {
		where = append(where, "d.timestamp <= ?")
		args = append(args, filter.Until)
	}
	if filter.MinConfidence > 0 {
		where = append(where, "d.confidence >= ?")
		args = append(args, filter.MinConfidence)
	}
	if filter.ActionType != "" {
		where = append(where, "EXISTS (SELECT 1 FROM actions a WHERE a.decision_id = d.id AND a.action_type = ?)")
		args = append(args, filter.ActionType)
	}
	if filter.Status != "" {
		where = append(where, `EXISTS (
			SELECT 1 FROM actions a JOIN outcomes o ON o.action_id = a.id
			WHERE a.decision_id = d.id AND o.status = ?)`)
		args = append(args, filter.Status)
	}

	query := "SELECT d.id, d.session_id, d.agent_id, d.prompt, d.reasoning, d.confidence, d.timestamp, d.context FROM decisions d"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.timestamp DESC, d.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("causal: query: %w", apperr.ErrInternal)
	}
	defer rows.Close()

	var out []types.Decision
	for rows.Next() {
		var d types.Decision
		var ctxJSON string
		if err := rows.Scan(&d.ID, &d.SessionID, &d.AgentID, &d.Prompt, &d.Reasoning, &d.Confidence, &d.Timestamp, &ctxJSON); err != nil {
			return nil, fmt.Errorf("causal: scan: %w", apperr.ErrInternal)
		}
		_ = json.Unmarshal([]byte(ctxJSON), &d.Context)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats returns aggregate counters over the whole graph.
func (s *Store) Stats(ctx context.Context) (*types.Stats, error) {
	var stats types.Stats
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`)
	if err := row.Scan(&stats.TotalDecisions); err != nil {
		return nil, fmt.Errorf("causal: stats decisions: %w", apperr.ErrInternal)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions`).Scan(&stats.TotalActions); err != nil {
		return nil, fmt.Errorf("causal: stats actions: %w", apperr.ErrInternal)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes`).Scan(&stats.TotalOutcomes); err != nil {
		return nil, fmt.Errorf("causal: stats outcomes: %w", apperr.ErrInternal)
	}

	var successes int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outcomes WHERE status = ?`, types.OutcomeSuccess).Scan(&successes); err != nil {
		return nil, fmt.Errorf("causal: stats success: %w", apperr.ErrInternal)
	}
	if stats.TotalOutcomes > 0 {
		stats.SuccessRate = float64(successes) / float64(stats.TotalOutcomes)
	}

	agentRows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, COUNT(*) c FROM decisions GROUP BY agent_id ORDER BY c DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("causal: stats agents: %w", apperr.ErrInternal)
	}
	defer agentRows.Close()
	for agentRows.Next() {
		var ac types.AgentCount
		if err := agentRows.Scan(&ac.AgentID, &ac.Count); err != nil {
			return nil, fmt.Errorf("causal: scan agent count: %w", apperr.ErrInternal)
		}
		stats.TopAgents = append(stats.TopAgents, ac)
	}

	stats.ActionTypeDist = make(map[string]int)
	typeRows, err := s.db.QueryContext(ctx, `SELECT action_type, COUNT(*) FROM actions GROUP BY action_type`)
	if err != nil {
		return nil, fmt.Errorf("causal: stats action types: %w", apperr.ErrInternal)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var t string
		var c int
		if err := typeRows.Scan(&t, &c); err != nil {
			return nil, fmt.Errorf("causal: scan action type: %w", apperr.ErrInternal)
		}
		stats.ActionTypeDist[t] = c
	}

	return &stats, nil
}

func scanAction(rows *sql.Rows) (types.Action, error) {
	var a types.Action
	var inputJSON, outputJSON sql.NullString
	var durationMs sql.NullInt64
	if err := rows.Scan(&a.ID, &a.DecisionID, &a.ActionType, &a.Description, &inputJSON, &outputJSON, &a.Timestamp, &durationMs); err != nil {
		return a, fmt.Errorf("causal: scan action: %w", apperr.ErrInternal)
	}
	if inputJSON.Valid {
		_ = json.Unmarshal([]byte(inputJSON.String), &a.Input)
	}
	if outputJSON.Valid {
		_ = json.Unmarshal([]byte(outputJSON.String), &a.Output)
	}
	if durationMs.Valid {
		a.DurationMs = &durationMs.Int64
	}
	return a, nil
}

func scanOutcome(rows *sql.Rows) (types.Outcome, error) {
	var o types.Outcome
	var metricsJSON sql.NullString
	if err := rows.Scan(&o.ID, &o.ActionID, &o.Status, &o.Description, &metricsJSON, &o.Feedback, &o.Timestamp); err != nil {
		return o, fmt.Errorf("causal: scan outcome: %w", apperr.ErrInternal)
	}
	if metricsJSON.Valid {
		_ = json.Unmarshal([]byte(metricsJSON.String), &o.Metrics)
	}
	return o, nil
}
