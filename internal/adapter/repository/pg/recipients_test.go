package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgdb "dailysender/internal/platform/pg"
	"dailysender/internal/recipient"
	"dailysender/migrations"
)

func TestRecipients_Integration(t *testing.T) {
	dsn := os.Getenv("DAILYSENDER_TEST_PG_URL")
	if dsn == "" || testing.Short() {
		t.Skip("DAILYSENDER_TEST_PG_URL is not set")
	}
	ctx := context.Background()

	pool, err := pgdb.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	_, err = pgdb.ApplyMigrationsFromFS(dsn, migrations.FS, migrations.PostgresDir)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "TRUNCATE recipients")
	require.NoError(t, err)

	repo := NewRecipients(pgdb.NewTxRunner(pool))
	now := time.Now().UTC().Truncate(time.Microsecond)

	added, err := repo.Insert(ctx, recipient.Recipient{ChatID: 10, SubscribedAt: now})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.Insert(ctx, recipient.Recipient{ChatID: 10, SubscribedAt: now})
	require.NoError(t, err)
	assert.False(t, added)

	n, err := repo.InsertMany(ctx, []recipient.Recipient{
		{ChatID: 10, SubscribedAt: now.Add(time.Second)},
		{ChatID: 11, SubscribedAt: now.Add(time.Second)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := repo.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(11), list[0].ChatID)
	assert.True(t, list[1].SubscribedAt.Equal(now))

	removed, err := repo.Delete(ctx, 10)
	require.NoError(t, err)
	assert.True(t, removed)

	ok, err := repo.Exists(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
