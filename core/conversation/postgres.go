package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresStore persists conversation records in the conversation_states table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps a connected database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type stateRow struct {
	SenderID  string    `db:"sender_id"`
	Flow      string    `db:"flow"`
	Step      int       `db:"step"`
	Answers   []byte    `db:"answers"`
	Status    string    `db:"status"`
	StartedAt time.Time `db:"started_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Get returns the record for a sender or ErrNotFound.
func (p *PostgresStore) Get(ctx context.Context, senderID string) (*State, error) {
	var row stateRow
	err := p.db.GetContext(ctx, &row, `
		SELECT sender_id, flow, step, answers, status, started_at, updated_at
		FROM conversation_states
		WHERE sender_id = $1`, senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("conversation get: %w", err)
	}
	return row.toState()
}

// Put upserts a record, keyed by sender id.
func (p *PostgresStore) Put(ctx context.Context, state *State) error {
	answers, err := json.Marshal(state.Answers)
	if err != nil {
		return fmt.Errorf("conversation answers encode: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO conversation_states (sender_id, flow, step, answers, status, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sender_id) DO UPDATE SET
			flow = EXCLUDED.flow,
			step = EXCLUDED.step,
			answers = EXCLUDED.answers,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			updated_at = EXCLUDED.updated_at`,
		state.SenderID, string(state.Flow), state.Step, answers,
		string(state.Status), state.StartedAt, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("conversation put: %w", err)
	}
	return nil
}

// ListByStatus returns records in the given status, newest first.
func (p *PostgresStore) ListByStatus(ctx context.Context, status Status) ([]State, error) {
	var rows []stateRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT sender_id, flow, step, answers, status, started_at, updated_at
		FROM conversation_states
		WHERE status = $1
		ORDER BY updated_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("conversation list: %w", err)
	}

	out := make([]State, 0, len(rows))
	for _, row := range rows {
		state, err := row.toState()
		if err != nil {
			return nil, err
		}
		out = append(out, *state)
	}
	return out, nil
}

// MarkAbandoned transitions stale active in-flow records to abandoned.
func (p *PostgresStore) MarkAbandoned(ctx context.Context, before time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE conversation_states
		SET status = $1, flow = '', step = 0, answers = '{}', updated_at = NOW()
		WHERE status = $2 AND flow <> '' AND updated_at < $3`,
		string(StatusAbandoned), string(StatusActive), before)
	if err != nil {
		return 0, fmt.Errorf("conversation mark abandoned: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("conversation mark abandoned: %w", err)
	}
	return int(affected), nil
}

func (r stateRow) toState() (*State, error) {
	answers := map[string]string{}
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &answers); err != nil {
			return nil, fmt.Errorf("conversation answers decode: %w", err)
		}
	}
	return &State{
		SenderID:  r.SenderID,
		Flow:      Flow(r.Flow),
		Step:      r.Step,
		Answers:   answers,
		Status:    Status(r.Status),
		StartedAt: r.StartedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}
