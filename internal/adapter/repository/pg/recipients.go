// Package pg stores recipients in PostgreSQL.
package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	pgdb "dailysender/internal/platform/pg"
	"dailysender/internal/recipient"
)

// Recipients implements recipient.Repository on PostgreSQL.
type Recipients struct {
	tx *pgdb.TxRunner
}

var _ recipient.Repository = (*Recipients)(nil)

// NewRecipients returns a repository running its queries through tx.
func NewRecipients(tx *pgdb.TxRunner) *Recipients {
	return &Recipients{tx: tx}
}

const insertRecipient = `INSERT INTO recipients (chat_id, subscribed_at) VALUES ($1, $2) ON CONFLICT (chat_id) DO NOTHING`

func (r *Recipients) Insert(ctx context.Context, rc recipient.Recipient) (bool, error) {
	tag, err := r.tx.GetQuerier(ctx).Exec(ctx, insertRecipient, rc.ChatID, rc.SubscribedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert recipient: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// InsertMany sends all inserts as one batch inside a transaction.
func (r *Recipients) InsertMany(ctx context.Context, rs []recipient.Recipient) (int, error) {
	if len(rs) == 0 {
		return 0, nil
	}
	added := 0
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		added = 0
		batch := &pgx.Batch{}
		for _, rc := range rs {
			batch.Queue(insertRecipient, rc.ChatID, rc.SubscribedAt.UTC())
		}
		results := r.tx.GetQuerier(ctx).SendBatch(ctx, batch)
		for range rs {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return fmt.Errorf("insert recipient: %w", err)
			}
			added += int(tag.RowsAffected())
		}
		return results.Close()
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (r *Recipients) Delete(ctx context.Context, chatID int64) (bool, error) {
	tag, err := r.tx.GetQuerier(ctx).Exec(ctx, `DELETE FROM recipients WHERE chat_id = $1`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete recipient: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Recipients) Exists(ctx context.Context, chatID int64) (bool, error) {
	var ok bool
	err := r.tx.GetQuerier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM recipients WHERE chat_id = $1)`, chatID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("lookup recipient: %w", err)
	}
	return ok, nil
}

func (r *Recipients) IDs(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.GetQuerier(ctx).Query(ctx,
		`SELECT chat_id FROM recipients ORDER BY subscribed_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list recipient ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan recipient ids: %w", err)
	}
	return ids, nil
}

func (r *Recipients) List(ctx context.Context) ([]recipient.Recipient, error) {
	rows, err := r.tx.GetQuerier(ctx).Query(ctx,
		`SELECT chat_id, subscribed_at FROM recipients ORDER BY subscribed_at DESC, chat_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (recipient.Recipient, error) {
		var rc recipient.Recipient
		err := row.Scan(&rc.ChatID, &rc.SubscribedAt)
		rc.SubscribedAt = rc.SubscribedAt.UTC()
		return rc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recipients: %w", err)
	}
	return out, nil
}

func (r *Recipients) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.tx.GetQuerier(ctx).QueryRow(ctx, `SELECT count(*) FROM recipients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}
