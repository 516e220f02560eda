// Package causal implements the causal graph store (C6): an append-only
// Decision/Action/Outcome/Edge graph backed by SQLite.
package causal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	prompt TEXT NOT NULL,
	reasoning TEXT NOT NULL,
	confidence REAL NOT NULL,
	timestamp INTEGER NOT NULL,
	context TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_agent ON decisions(agent_id);
CREATE INDEX IF NOT EXISTS idx_decisions_session ON decisions(session_id);
CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);

CREATE TABLE IF NOT EXISTS actions (
	id TEXT PRIMARY KEY,
	decision_id TEXT NOT NULL REFERENCES decisions(id),
	action_type TEXT NOT NULL,
	description TEXT NOT NULL,
	input TEXT,
	output TEXT,
	timestamp INTEGER NOT NULL,
	duration_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_actions_decision ON actions(decision_id);
CREATE INDEX IF NOT EXISTS idx_actions_type ON actions(action_type);

CREATE TABLE IF NOT EXISTS outcomes (
	id TEXT PRIMARY KEY,
	action_id TEXT NOT NULL REFERENCES actions(id),
	status TEXT NOT NULL,
	description TEXT NOT NULL,
	metrics TEXT,
	feedback TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_action ON outcomes(action_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);

CREATE TABLE IF NOT EXISTS edges (
	id TEXT PRIMARY KEY,
	source_node TEXT NOT NULL,
	target_node TEXT NOT NULL,
	relationship TEXT NOT NULL,
	weight REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_node);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_node);
`

// Store is the SQLite-backed causal graph store.
type Store struct {
	db    *sql.DB
	clock *clock.Clock
}

// Open creates (or attaches to) a causal graph store at dbPath.
func Open(dbPath string, c *clock.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("causal: open: %w", apperr.ErrInternal)
	}

	// SQLite is single-writer; one shared connection serializes callers
	// through database/sql instead of contending for the file lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("causal: pragma: %w", apperr.ErrInternal)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("causal: schema: %w", apperr.ErrInternal)
	}

	return &Store{db: db, clock: c}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// RecordDecision appends a new Decision node and returns its id.
func (s *Store) RecordDecision(ctx context.Context, d types.Decision) (string, error) {
	d.ID = s.clock.NewID(clock.PrefixDecision)
	if d.Timestamp == 0 {
		d.Timestamp = s.clock.Now()
	}
	ctxJSON, err := json.Marshal(d.Context)
	if err != nil {
		return "", fmt.Errorf("causal: marshal context: %w", apperr.ErrInvalidArgument)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, session_id, agent_id, prompt, reasoning, confidence, timestamp, context)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.SessionID, d.AgentID, d.Prompt, d.Reasoning, d.Confidence, d.Timestamp, string(ctxJSON))
	if err != nil {
		return "", fmt.Errorf("causal: insert decision: %w", apperr.ErrInternal)
	}
	return d.ID, nil
}

// RecordAction appends a new Action node, edged to its parent Decision, and
// returns its id. Each Action has exactly one parent Decision edge.
func (s *Store) RecordAction(ctx context.Context, decisionID string, a types.Action) (string, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM decisions WHERE id = ?`, decisionID).Scan(&exists); err != nil {
		return "", fmt.Errorf("decision %s: %w", decisionID, apperr.ErrNotFound)
	}

	a.ID = s.clock.NewID(clock.PrefixAction)
	a.DecisionID = decisionID
	if a.Timestamp == 0 {
		a.Timestamp = s.clock.Now()
	}
	inputJSON, err := marshalAny(a.Input)
	if err != nil {
		return "", fmt.Errorf("causal: marshal input: %w", apperr.ErrInvalidArgument)
	}
	outputJSON, err := marshalAny(a.Output)
	if err != nil {
		return "", fmt.Errorf("causal: marshal output: %w", apperr.ErrInvalidArgument)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, decision_id, action_type, description, input, output, timestamp, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DecisionID, a.ActionType, a.Description, inputJSON, outputJSON, a.Timestamp, a.DurationMs,
	); err != nil {
		return "", fmt.Errorf("causal: insert action: %w", apperr.ErrInternal)
	}

	if err := s.linkLocked(ctx, decisionID, a.ID, types.RelCauses, 1.0); err != nil {
		return "", err
	}
	return a.ID, nil
}

// RecordOutcome appends a new Outcome node, edged to its parent Action, and
// returns its id. Each Outcome has exactly one parent Action edge.
func (s *Store) RecordOutcome(ctx context.Context, actionID string, o types.Outcome) (string, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM actions WHERE id = ?`, actionID).Scan(&exists); err != nil {
		return "", fmt.Errorf("action %s: %w", actionID, apperr.ErrNotFound)
	}

	o.ID = s.clock.NewID(clock.PrefixOutcome)
	o.ActionID = actionID
	if o.Timestamp == 0 {
		o.Timestamp = s.clock.Now()
	}
	metricsJSON, err := json.Marshal(o.Metrics)
	if err != nil {
		return "", fmt.Errorf("causal: marshal metrics: %w", apperr.ErrInvalidArgument)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (id, action_id, status, description, metrics, feedback, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ActionID, o.Status, o.Description, string(metricsJSON), o.Feedback, o.Timestamp,
	); err != nil {
		return "", fmt.Errorf("causal: insert outcome: %w", apperr.ErrInternal)
	}

	if err := s.linkLocked(ctx, actionID, o.ID, types.RelResultsIn, 1.0); err != nil {
		return "", err
	}
	return o.ID, nil
}

// Link records an explicit edge between two existing nodes.
func (s *Store) Link(ctx context.Context, src, dst string, rel types.EdgeRelationship, weight float64) (string, error) {
	return s.linkID(ctx, src, dst, rel, weight)
}

func (s *Store) linkLocked(ctx context.Context, src, dst string, rel types.EdgeRelationship, weight float64) error {
	_, err := s.linkID(ctx, src, dst, rel, weight)
	return err
}

func (s *Store) linkID(ctx context.Context, src, dst string, rel types.EdgeRelationship, weight float64) (string, error) {
	id := s.clock.NewID(clock.PrefixEdge)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges (id, source_node, target_node, relationship, weight)
		VALUES (?, ?, ?, ?, ?)`,
		id, src, dst, rel, weight)
	if err != nil {
		return "", fmt.Errorf("causal: insert edge: %w", apperr.ErrInternal)
	}
	return id, nil
}

func marshalAny(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
