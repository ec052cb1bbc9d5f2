package hitl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRequestStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRequestStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	second := &Request{ID: "b", Status: RequestStatusPending, CreatedAt: base.Add(time.Second)}
	first := &Request{ID: "a", Status: RequestStatusPending, CreatedAt: base, Input: map[string]any{"k": "v"}}
	require.NoError(t, store.Save(ctx, second))
	require.NoError(t, store.Save(ctx, first))

	// 存储保存副本
	first.Input["k"] = "mutated"
	got, err := store.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v", got.Input["k"])

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	settled := base.Add(time.Minute)
	got.Status = RequestStatusResolved
	got.Response = "done"
	got.SettledAt = &settled
	require.NoError(t, store.Update(ctx, got))

	resolved, err := store.List(ctx, RequestStatusResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "done", resolved[0].Response)
	assert.Equal(t, settled, *resolved[0].SettledAt)

	pending, err := store.List(ctx, RequestStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)
}

func TestInMemoryRequestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRequestStore()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrRequestNotFound)
	assert.ErrorIs(t, store.Update(ctx, &Request{ID: "missing"}), ErrRequestNotFound)
}
