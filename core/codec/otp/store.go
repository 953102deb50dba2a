package otp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
)

// MemoryStore keeps challenges in memory for tests and development.
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{challenges: make(map[string]Challenge)}
}

// Upsert overwrites the sender's challenge.
func (m *MemoryStore) Upsert(_ context.Context, ch *Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[ch.SenderID] = *ch
	return nil
}

// Get returns the sender's challenge or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, senderID string) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[senderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &ch, nil
}

// Delete removes the sender's challenge.
func (m *MemoryStore) Delete(_ context.Context, senderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.challenges, senderID)
	return nil
}

// PostgresStore persists challenges in the otp_challenges table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps a connected database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert overwrites the sender's challenge.
func (p *PostgresStore) Upsert(ctx context.Context, ch *Challenge) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO otp_challenges (sender_id, code, expires_at, attempts)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sender_id) DO UPDATE SET
			code = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at,
			attempts = EXCLUDED.attempts`,
		ch.SenderID, ch.Code, ch.ExpiresAt, ch.Attempts)
	if err != nil {
		return fmt.Errorf("otp upsert: %w", err)
	}
	return nil
}

// Get returns the sender's challenge or ErrNotFound.
func (p *PostgresStore) Get(ctx context.Context, senderID string) (*Challenge, error) {
	var ch Challenge
	err := p.db.GetContext(ctx, &ch, `
		SELECT sender_id, code, expires_at, attempts
		FROM otp_challenges
		WHERE sender_id = $1`, senderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp get: %w", err)
	}
	return &ch, nil
}

// Delete removes the sender's challenge.
func (p *PostgresStore) Delete(ctx context.Context, senderID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE sender_id = $1`, senderID)
	if err != nil {
		return fmt.Errorf("otp delete: %w", err)
	}
	return nil
}
