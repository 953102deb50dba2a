package conversation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no record exists for a sender.
var ErrNotFound = errors.New("conversation: state not found")

// Store persists per-sender conversation records.
type Store interface {
	// Get returns the record for a sender or ErrNotFound.
	Get(ctx context.Context, senderID string) (*State, error)
	// Put upserts a record, keyed by sender id.
	Put(ctx context.Context, state *State) error
	// ListByStatus returns records in the given status, newest first.
	ListByStatus(ctx context.Context, status Status) ([]State, error)
	// MarkAbandoned transitions active in-flow records idle since before
	// the cutoff and reports how many were affected.
	MarkAbandoned(ctx context.Context, before time.Time) (int, error)
}

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

// Get returns a copy of the stored record for a sender.
func (m *MemoryStore) Get(_ context.Context, senderID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[senderID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

// Put stores a copy of the record keyed by sender id.
func (m *MemoryStore) Put(_ context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[state.SenderID] = state.Clone()
	return nil
}

// ListByStatus returns records in the given status ordered by update time,
// newest first.
func (m *MemoryStore) ListByStatus(_ context.Context, status Status) ([]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []State
	for _, state := range m.states {
		if state.Status == status {
			out = append(out, *state.Clone())
		}
	}
	sortByUpdatedDesc(out)
	return out, nil
}

// MarkAbandoned flips stale active in-flow records to abandoned.
func (m *MemoryStore) MarkAbandoned(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	now := time.Now().UTC()
	for _, state := range m.states {
		if state.Status == StatusActive && state.InFlow() && state.UpdatedAt.Before(before) {
			state.Abandon(now)
			count++
		}
	}
	return count, nil
}

// Len reports how many sender records exist.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

func sortByUpdatedDesc(states []State) {
	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
}
