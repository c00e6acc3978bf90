package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurlab/advisor/dialogue"
	"github.com/insurlab/advisor/session"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := New(Options{Addr: mr.Addr()})
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestSaveLoadDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	state := dialogue.NewState("t1")
	state.RawAnswers = []string{"fintech startup"}
	state.Attempts = 1
	require.NoError(t, store.Save(ctx, session.NewSnapshot(state)))

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", loaded.ThreadID)
	assert.Equal(t, []string{"fintech startup"}, loaded.State.RawAnswers)
	assert.Equal(t, 1, loaded.State.Attempts)

	require.NoError(t, store.Delete(ctx, "t1"))
	_, err = store.Load(ctx, "t1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestLoadMissing(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestList(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.NewSnapshot(dialogue.NewState("a"))))
	require.NoError(t, store.Save(ctx, session.NewSnapshot(dialogue.NewState("b"))))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestListDropsExpiredSessions(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store := New(Options{Addr: mr.Addr(), TTL: time.Minute})
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.NewSnapshot(dialogue.NewState("gone"))))
	mr.FastForward(2 * time.Minute)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSaveOverwrites(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	snapshot := session.NewSnapshot(dialogue.NewState("t1"))
	require.NoError(t, store.Save(ctx, snapshot))

	snapshot.State.Attempts = 4
	snapshot.Version = 2
	require.NoError(t, store.Save(ctx, snapshot))

	loaded, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.State.Attempts)
	assert.Equal(t, 2, loaded.Version)
}
