package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlitedb "dailysender/internal/platform/sqlite"
	"dailysender/internal/recipient"
)

func newRepo(t *testing.T) (*Recipients, *sqlitedb.TestDB) {
	t.Helper()
	tdb := sqlitedb.NewTestDBInMemory(t)
	return NewRecipients(tdb.TxRunner), tdb
}

func at(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func TestRecipients_InsertIsIdempotent(t *testing.T) {
	repo, tdb := newRepo(t)
	ctx := context.Background()

	added, err := repo.Insert(ctx, recipient.Recipient{ChatID: 42, SubscribedAt: at(100)})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.Insert(ctx, recipient.Recipient{ChatID: 42, SubscribedAt: at(200)})
	require.NoError(t, err)
	assert.False(t, added)

	assert.Equal(t, 1, tdb.CountRows(t, "recipients"))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, at(100), list[0].SubscribedAt, "first subscription time wins")
}

func TestRecipients_Ordering(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	for _, rc := range []recipient.Recipient{
		{ChatID: 3, SubscribedAt: at(300)},
		{ChatID: 1, SubscribedAt: at(100)},
		{ChatID: -100200, SubscribedAt: at(200)},
	} {
		_, err := repo.Insert(ctx, rc)
		require.NoError(t, err)
	}

	ids, err := repo.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, -100200, 3}, ids)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []recipient.Recipient{
		{ChatID: 3, SubscribedAt: at(300)},
		{ChatID: -100200, SubscribedAt: at(200)},
		{ChatID: 1, SubscribedAt: at(100)},
	}, list)
}

func TestRecipients_DeleteExistsCount(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, recipient.Recipient{ChatID: 7, SubscribedAt: at(1)})
	require.NoError(t, err)

	ok, err := repo.Exists(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := repo.Delete(ctx, 7)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, 7)
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err = repo.Exists(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecipients_InsertMany(t *testing.T) {
	repo, tdb := newRepo(t)
	ctx := context.Background()

	_, err := repo.Insert(ctx, recipient.Recipient{ChatID: 1, SubscribedAt: at(1)})
	require.NoError(t, err)

	added, err := repo.InsertMany(ctx, []recipient.Recipient{
		{ChatID: 1, SubscribedAt: at(2)},
		{ChatID: 2, SubscribedAt: at(2)},
		{ChatID: 3, SubscribedAt: at(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 3, tdb.CountRows(t, "recipients"))
}

func TestRecipients_EmptyListsAreNotNil(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	ids, err := repo.IDs(ctx)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
}
