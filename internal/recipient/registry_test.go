package recipient_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reposqlite "dailysender/internal/adapter/repository/sqlite"
	sqlitedb "dailysender/internal/platform/sqlite"
	"dailysender/internal/recipient"
	"dailysender/internal/shared"
)

func newRegistry(t *testing.T) *recipient.Registry {
	t.Helper()
	tdb := sqlitedb.NewTestDBInMemory(t)
	return recipient.NewRegistry(reposqlite.NewRecipients(tdb.TxRunner), nil)
}

func TestRegistry_AddIsIdempotent(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	added, err := reg.Add(ctx, 555)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = reg.Add(ctx, 555)
	require.NoError(t, err)
	assert.False(t, added)

	ids, err := reg.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{555}, ids)
}

func TestRegistry_AddStampsUTC(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	_, err := reg.Add(ctx, 1)
	require.NoError(t, err)

	list, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, time.UTC, list[0].SubscribedAt.Location())
	assert.True(t, list[0].SubscribedAt.After(before))
}

func TestRegistry_RemoveAndContains(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	_, err := reg.Add(ctx, 9)
	require.NoError(t, err)

	ok, err := reg.Contains(ctx, 9)
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := reg.Remove(ctx, 9)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = reg.Remove(ctx, 9)
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err = reg.Contains(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_ListAllIsSnapshot(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		_, err := reg.Add(ctx, id)
		require.NoError(t, err)
	}

	ids, err := reg.ListAll(ctx)
	require.NoError(t, err)
	ids[0] = 99

	again, err := reg.ListAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, again)
}

func TestRegistry_ImportLegacy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[11, 22, 11, -1001]`), 0o644))
	ctx := context.Background()

	reg := newRegistry(t)
	n, err := reg.ImportLegacy(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ids, err := reg.ListAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{11, 22, -1001}, ids)

	n, err = reg.ImportLegacy(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, n, "non-empty registry imports nothing")
}

func TestRegistry_ImportLegacyMissingOrBad(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t)

	n, err := reg.ImportLegacy(ctx, filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	assert.Zero(t, n)

	bad := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"users": []}`), 0o644))
	_, err = reg.ImportLegacy(ctx, bad)
	assert.ErrorIs(t, err, shared.ErrPersistence)
}

type failingRepo struct{ recipient.Repository }

func (failingRepo) IDs(context.Context) ([]int64, error) { return nil, errors.New("disk gone") }

func TestRegistry_StorageErrorsArePersistence(t *testing.T) {
	reg := recipient.NewRegistry(failingRepo{}, nil)

	_, err := reg.ListAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPersistence)
	assert.EqualError(t, err, "persistence failure: list recipient ids: disk gone")
}
