package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetUnknownSender(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStorePutIsolatesCaller(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	st := NewState("15550001", now)
	st.Begin(FlowPostVacancy, now)
	require.NoError(t, store.Put(ctx, st))

	// Mutating the caller's copy must not leak into the store.
	st.SetAnswer("title", "Driver")

	loaded, err := store.Get(ctx, "15550001")
	require.NoError(t, err)
	require.Empty(t, loaded.Answers)
	require.Equal(t, FlowPostVacancy, loaded.Flow)
}

func TestMemoryStoreListByStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i, sender := range []string{"a", "b", "c"} {
		st := NewState(sender, base)
		st.Begin(FlowPostVacancy, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Put(ctx, st))
	}
	done := NewState("d", base)
	done.Begin(FlowCvUpdate, base)
	done.Complete(base)
	require.NoError(t, store.Put(ctx, done))

	active, err := store.ListByStatus(ctx, StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 3)
	// Newest first.
	require.Equal(t, "c", active[0].SenderID)

	completed, err := store.ListByStatus(ctx, StatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, "d", completed[0].SenderID)
}

func TestMemoryStoreMarkAbandoned(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	stale := NewState("old", base)
	stale.Begin(FlowSeekerRegistration, base.Add(-2*time.Hour))
	require.NoError(t, store.Put(ctx, stale))

	fresh := NewState("new", base)
	fresh.Begin(FlowSeekerRegistration, base)
	require.NoError(t, store.Put(ctx, fresh))

	idle := NewState("idle", base.Add(-3*time.Hour))
	require.NoError(t, store.Put(ctx, idle))

	count, err := store.MarkAbandoned(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := store.Get(ctx, "old")
	require.NoError(t, err)
	require.Equal(t, StatusAbandoned, got.Status)
	require.False(t, got.InFlow())

	got, err = store.Get(ctx, "new")
	require.NoError(t, err)
	require.Equal(t, StatusActive, got.Status)

	// Idle records are not flows and are left alone.
	got, err = store.Get(ctx, "idle")
	require.NoError(t, err)
	require.Equal(t, StatusActive, got.Status)
}

func TestReaperCheckStale(t *testing.T) {
	store := NewMemoryStore()
	reaper := NewReaper(store, 30*time.Minute)
	base := time.Now().UTC()

	st := NewState("15550001", base)
	st.Begin(FlowPostVacancy, base)

	require.False(t, reaper.CheckStale(st, base.Add(10*time.Minute)))
	require.Equal(t, StatusActive, st.Status)

	require.True(t, reaper.CheckStale(st, base.Add(time.Hour)))
	require.Equal(t, StatusAbandoned, st.Status)
	require.False(t, st.InFlow())
}

func TestReaperSweep(t *testing.T) {
	store := NewMemoryStore()
	reaper := NewReaper(store, 30*time.Minute)
	ctx := context.Background()
	base := time.Now().UTC()

	st := NewState("15550001", base)
	st.Begin(FlowPostVacancy, base.Add(-time.Hour))
	require.NoError(t, store.Put(ctx, st))

	count, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
