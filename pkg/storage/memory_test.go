package storage

import (
	"context"
	"testing"

	"github.com/fedmesh/fedmesh/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGet(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "k1", "v1"))
	assert.ErrorIs(t, s.Create(ctx, "k1", "v2"), errors.ErrEntityExists)
	assert.ErrorIs(t, s.Create(ctx, "", "v"), errors.ErrEmptyKey)

	v, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	assert.ErrorIs(t, s.Update(ctx, "k1", "v"), errors.ErrNotFound)

	require.NoError(t, s.Create(ctx, "k1", "v1"))
	require.NoError(t, s.Update(ctx, "k1", "v2"))

	v, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestListPagination(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "a", 1))
	require.NoError(t, s.Create(ctx, "b", 2))
	require.NoError(t, s.Create(ctx, "c", 3))

	page, total, err := s.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	assert.Equal(t, []any{1, 2}, page)

	page, total, err = s.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	assert.Equal(t, []any{3}, page)

	page, total, err = s.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	assert.Nil(t, page)
}

func TestDelete(t *testing.T) {
	s := NewInMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "k1", "v1"))
	require.NoError(t, s.Delete(ctx, "k1"))

	_, err := s.Get(ctx, "k1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
