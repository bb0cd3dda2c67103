package store

import (
	"context"
	"fmt"
	"testing"

	apperrors "github.com/lepinkainen/listado/internal/errors"
	"github.com/lepinkainen/listado/internal/record"
	"github.com/lepinkainen/listado/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	env := testutil.NewTestEnv(t)
	s := NewSQLiteStore(env.Path("records.db"))
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeRecords(ids ...int64) []record.Record {
	records := make([]record.Record, len(ids))
	for i, id := range ids {
		records[i] = record.Record{ID: id, Name: fmt.Sprintf("cat-%d", id)}
	}
	return records
}

func TestPrimitivesBeforeOpen(t *testing.T) {
	env := testutil.NewTestEnv(t)
	s := NewSQLiteStore(env.Path("unopened.db"))
	ctx := context.Background()

	_, err := s.Count(ctx)
	assert.True(t, apperrors.IsStoreUnavailable(err))

	_, err = s.GetAll(ctx)
	assert.True(t, apperrors.IsStoreUnavailable(err))

	assert.True(t, apperrors.IsStoreUnavailable(s.Put(ctx, record.Record{ID: 1})))
	assert.True(t, apperrors.IsStoreUnavailable(s.PutBatch(ctx, makeRecords(1))))
	assert.True(t, apperrors.IsStoreUnavailable(s.Clear(ctx)))
	assert.True(t, apperrors.IsStoreUnavailable(s.Drop(ctx)))
}

func TestOpenFailsForMissingDirectory(t *testing.T) {
	env := testutil.NewTestEnv(t)
	s := NewSQLiteStore(env.Path("missing", "dir", "records.db"))

	err := s.Open(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsStoreUnavailable(err))
}

func TestPutBatchKeepsInsertionOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBatch(ctx, makeRecords(5, 3, 9)))
	require.NoError(t, s.PutBatch(ctx, makeRecords(1, 7)))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 3, 9, 1, 7}, record.IDs(all))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPutUpsertsInPlace(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBatch(ctx, makeRecords(1, 2, 3)))
	require.NoError(t, s.Put(ctx, record.Record{ID: 2, Name: "renamed"}))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, record.Record{ID: 2, Name: "renamed"}, all[1])
}

func TestPutBatchDuplicateIDsCollapse(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	batch := []record.Record{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}}
	require.NoError(t, s.PutBatch(ctx, batch))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []record.Record{{ID: 1, Name: "b"}}, all)
}

func TestPutBatchCancelledContextWritesNothing(t *testing.T) {
	s := setupTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.PutBatch(ctx, makeRecords(1, 2))
	require.Error(t, err)
	assert.True(t, apperrors.IsWriteFailed(err))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClear(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBatch(ctx, makeRecords(1, 2, 3)))
	require.NoError(t, s.Clear(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDropThenReopen(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBatch(ctx, makeRecords(1, 2)))
	require.NoError(t, s.Drop(ctx))

	_, err := s.Count(ctx)
	assert.True(t, apperrors.IsStoreUnavailable(err))

	require.NoError(t, s.Open(ctx))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "dropped collection must come back empty")
}

func TestReopenPersists(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("persist.db")
	ctx := context.Background()

	first := NewSQLiteStore(path)
	require.NoError(t, first.Open(ctx))
	require.NoError(t, first.PutBatch(ctx, makeRecords(4, 2)))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(path)
	require.NoError(t, second.Open(ctx))
	defer func() { _ = second.Close() }()

	all, err := second.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 2}, record.IDs(all))
}
