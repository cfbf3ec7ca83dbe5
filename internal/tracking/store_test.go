package tracking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidahmann/cardkit/internal/dataid"
)

// storeContract is run against every backend.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	rec, err := store.Get(ctx, "conv:test:1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Revision)
	assert.Zero(t, rec.LiveIDs().Len())

	rec.Enable(actionA, cardC)
	rec.SaveMessage(SavedMessage{ID: "m1", Digest: "d", IDs: []dataid.DataID{actionA}})
	rev, err := store.Set(ctx, "conv:test:1", rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)

	got, err := store.Get(ctx, "conv:test:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Revision)
	assert.True(t, got.IsLive(actionA))
	assert.True(t, got.IsLive(cardC))
	require.Len(t, got.Messages, 1)
	assert.Equal(t, []dataid.DataID{actionA}, got.Messages[0].IDs)

	// a writer holding the stale revision loses
	_, err = store.Set(ctx, "conv:test:1", rec)
	require.ErrorIs(t, err, ErrConflict)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(0), conflict.ExpectedRevision)

	got.Disable(actionA)
	rev, err = store.Set(ctx, "conv:test:1", got)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)

	final, err := store.Get(ctx, "conv:test:1")
	require.NoError(t, err)
	assert.False(t, final.IsLive(actionA))

	other, err := store.Get(ctx, "conv:test:2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), other.Revision)
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	var rec Record
	rec.Enable(actionA)
	_, err := store.Set(ctx, "k", rec)
	require.NoError(t, err)

	rec.Live[dataid.ScopeAction][0] = "mutated"
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, got.IsLive(actionA))
	assert.Equal(t, []string{"k"}, store.Keys())
}
