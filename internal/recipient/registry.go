// Package recipient keeps the set of chats subscribed to the daily broadcast.
package recipient

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"dailysender/internal/shared"
)

// Recipient is one subscribed chat.
type Recipient struct {
	ChatID       int64
	SubscribedAt time.Time // UTC
}

// Repository is the storage behind a Registry. Implementations make Insert
// idempotent on ChatID.
type Repository interface {
	// Insert stores r unless r.ChatID is present; it reports whether a row was added.
	Insert(ctx context.Context, r Recipient) (bool, error)
	// InsertMany stores every new recipient atomically and returns how many were added.
	InsertMany(ctx context.Context, rs []Recipient) (int, error)
	Delete(ctx context.Context, chatID int64) (bool, error)
	Exists(ctx context.Context, chatID int64) (bool, error)
	// IDs returns every chat id in subscription order.
	IDs(ctx context.Context) ([]int64, error)
	// List returns every recipient, newest first.
	List(ctx context.Context) ([]Recipient, error)
	Count(ctx context.Context) (int, error)
}

// Registry is the subscription set used by the bot, the admin surface and the
// broadcast executor.
type Registry struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry wraps repo.
func NewRegistry(repo Repository, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		repo:   repo,
		logger: logger.With("component", "recipient"),
		now:    time.Now,
	}
}

// Add subscribes chatID. Adding a present id is a no-op that reports false.
func (r *Registry) Add(ctx context.Context, chatID int64) (bool, error) {
	added, err := r.repo.Insert(ctx, Recipient{ChatID: chatID, SubscribedAt: r.now().UTC()})
	if err != nil {
		return false, shared.MarkKind(shared.Wrapf(err, "add recipient %d", chatID), shared.KindPersistence)
	}
	if added {
		r.logger.Info("recipient subscribed", "chat_id", chatID)
	}
	return added, nil
}

// Remove unsubscribes chatID. Removing an absent id reports false.
func (r *Registry) Remove(ctx context.Context, chatID int64) (bool, error) {
	removed, err := r.repo.Delete(ctx, chatID)
	if err != nil {
		return false, shared.MarkKind(shared.Wrapf(err, "remove recipient %d", chatID), shared.KindPersistence)
	}
	if removed {
		r.logger.Info("recipient unsubscribed", "chat_id", chatID)
	}
	return removed, nil
}

// Contains reports whether chatID is subscribed.
func (r *Registry) Contains(ctx context.Context, chatID int64) (bool, error) {
	ok, err := r.repo.Exists(ctx, chatID)
	if err != nil {
		return false, shared.MarkKind(shared.Wrapf(err, "lookup recipient %d", chatID), shared.KindPersistence)
	}
	return ok, nil
}

// ListAll returns a fresh snapshot of every subscribed chat id.
func (r *Registry) ListAll(ctx context.Context) ([]int64, error) {
	ids, err := r.repo.IDs(ctx)
	if err != nil {
		return nil, shared.MarkKind(shared.Wrap(err, "list recipient ids"), shared.KindPersistence)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// List returns every recipient, newest subscription first.
func (r *Registry) List(ctx context.Context) ([]Recipient, error) {
	rs, err := r.repo.List(ctx)
	if err != nil {
		return nil, shared.MarkKind(shared.Wrap(err, "list recipients"), shared.KindPersistence)
	}
	if rs == nil {
		rs = []Recipient{}
	}
	return rs, nil
}

// Count returns the number of subscribed chats.
func (r *Registry) Count(ctx context.Context) (int, error) {
	n, err := r.repo.Count(ctx)
	if err != nil {
		return 0, shared.MarkKind(shared.Wrap(err, "count recipients"), shared.KindPersistence)
	}
	return n, nil
}

// ImportLegacy loads chat ids from a users.json file (a JSON array of ids)
// when the registry is still empty. A missing file, or a non-empty registry,
// imports nothing.
func (r *Registry) ImportLegacy(ctx context.Context, path string) (int, error) {
	n, err := r.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, shared.MarkKind(shared.Wrapf(err, "read %s", path), shared.KindPersistence)
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return 0, shared.MarkKind(shared.Wrapf(err, "decode %s", path), shared.KindPersistence)
	}

	at := r.now().UTC()
	seen := make(map[int64]struct{}, len(ids))
	batch := make([]Recipient, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		batch = append(batch, Recipient{ChatID: id, SubscribedAt: at})
	}

	added, err := r.repo.InsertMany(ctx, batch)
	if err != nil {
		return 0, shared.MarkKind(shared.Wrapf(err, "import %s", path), shared.KindPersistence)
	}
	r.logger.Info("imported legacy recipients", "path", path, "count", added)
	return added, nil
}
