package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxRunner_WithinTx_Commit(t *testing.T) {
	tdb := NewTestDBInMemory(t)
	ctx := context.Background()

	err := tdb.TxRunner.WithinTx(ctx, func(ctx context.Context) error {
		tx, ok := SqlTx(ctx)
		require.True(t, ok)
		assert.Same(t, tx, tdb.TxRunner.GetQuerier(ctx))

		_, err := tdb.TxRunner.GetQuerier(ctx).ExecContext(ctx,
			"INSERT INTO recipients (chat_id, subscribed_at) VALUES (?, ?)", 1, 0)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tdb.CountRows(t, "recipients"))
}

func TestTxRunner_WithinTx_Rollback(t *testing.T) {
	tdb := NewTestDBInMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := tdb.TxRunner.WithinTx(ctx, func(ctx context.Context) error {
		for i := 1; i <= 3; i++ {
			if _, err := tdb.TxRunner.GetQuerier(ctx).ExecContext(ctx,
				"INSERT INTO recipients (chat_id, subscribed_at) VALUES (?, ?)", i, 0); err != nil {
				return err
			}
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, tdb.CountRows(t, "recipients"))
}

func TestTxRunner_WithinTx_PanicRollsBack(t *testing.T) {
	tdb := NewTestDBInMemory(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = tdb.TxRunner.WithinTx(ctx, func(ctx context.Context) error {
			_, _ = tdb.TxRunner.GetQuerier(ctx).ExecContext(ctx,
				"INSERT INTO recipients (chat_id, subscribed_at) VALUES (1, 0)")
			panic("bug")
		})
	})
	assert.Zero(t, tdb.CountRows(t, "recipients"))
}

func TestTxRunner_Nested(t *testing.T) {
	tdb := NewTestDBInMemory(t)
	ctx := context.Background()

	err := tdb.TxRunner.WithinTx(ctx, func(outer context.Context) error {
		outerTx, _ := SqlTx(outer)
		return tdb.TxRunner.WithinTx(outer, func(inner context.Context) error {
			innerTx, ok := SqlTx(inner)
			require.True(t, ok)
			assert.Same(t, outerTx, innerTx)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestGetQuerier_WithoutTx(t *testing.T) {
	tdb := NewTestDBInMemory(t)

	_, ok := SqlTx(context.Background())
	assert.False(t, ok)
	assert.Same(t, tdb.DB, tdb.TxRunner.GetQuerier(context.Background()))
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(errors.New("no such table")))
	assert.True(t, IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsBusy(fmt.Errorf("exec: %w", errors.New("SQLITE_BUSY"))))
}

func TestTxRunner_RetriesBusy(t *testing.T) {
	tdb := NewTestDBInMemory(t)
	attempts := 0

	err := tdb.TxRunner.WithinTx(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}
