// Package sqlite stores recipients in the embedded SQLite database.
package sqlite

import (
	"context"
	"fmt"
	"time"

	sqlitedb "dailysender/internal/platform/sqlite"
	"dailysender/internal/recipient"
)

// Recipients implements recipient.Repository on SQLite.
// subscribed_at is stored as Unix milliseconds.
type Recipients struct {
	tx *sqlitedb.TxRunner
}

var _ recipient.Repository = (*Recipients)(nil)

// NewRecipients returns a repository running its queries through tx.
func NewRecipients(tx *sqlitedb.TxRunner) *Recipients {
	return &Recipients{tx: tx}
}

const insertRecipient = `INSERT INTO recipients (chat_id, subscribed_at) VALUES (?, ?) ON CONFLICT (chat_id) DO NOTHING`

func (r *Recipients) Insert(ctx context.Context, rc recipient.Recipient) (bool, error) {
	res, err := r.tx.GetQuerier(ctx).ExecContext(ctx, insertRecipient, rc.ChatID, rc.SubscribedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("insert recipient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert recipient: %w", err)
	}
	return n > 0, nil
}

func (r *Recipients) InsertMany(ctx context.Context, rs []recipient.Recipient) (int, error) {
	added := 0
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		added = 0
		for _, rc := range rs {
			ok, err := r.Insert(ctx, rc)
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

func (r *Recipients) Delete(ctx context.Context, chatID int64) (bool, error) {
	res, err := r.tx.GetQuerier(ctx).ExecContext(ctx, `DELETE FROM recipients WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete recipient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete recipient: %w", err)
	}
	return n > 0, nil
}

func (r *Recipients) Exists(ctx context.Context, chatID int64) (bool, error) {
	var one int
	err := r.tx.GetQuerier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM recipients WHERE chat_id = ?)`, chatID).Scan(&one)
	if err != nil {
		return false, fmt.Errorf("lookup recipient: %w", err)
	}
	return one == 1, nil
}

func (r *Recipients) IDs(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.GetQuerier(ctx).QueryContext(ctx,
		`SELECT chat_id FROM recipients ORDER BY subscribed_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list recipient ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Recipients) List(ctx context.Context) ([]recipient.Recipient, error) {
	rows, err := r.tx.GetQuerier(ctx).QueryContext(ctx,
		`SELECT chat_id, subscribed_at FROM recipients ORDER BY subscribed_at DESC, chat_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	out := []recipient.Recipient{}
	for rows.Next() {
		var (
			id int64
			ms int64
		)
		if err := rows.Scan(&id, &ms); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, recipient.Recipient{ChatID: id, SubscribedAt: time.UnixMilli(ms).UTC()})
	}
	return out, rows.Err()
}

func (r *Recipients) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.tx.GetQuerier(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM recipients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recipients: %w", err)
	}
	return n, nil
}
