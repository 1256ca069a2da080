// Package handlers implements the subscriber bot commands.
package handlers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailysender/internal/adapter/telegram"
	"dailysender/internal/adapter/telegram/middleware"
	"dailysender/internal/broadcast"
)

// Subscriptions is the recipient registry as seen by the bot.
type Subscriptions interface {
	Add(ctx context.Context, chatID int64) (bool, error)
	Remove(ctx context.Context, chatID int64) (bool, error)
	Contains(ctx context.Context, chatID int64) (bool, error)
}

// Broadcaster runs an unscheduled broadcast.
type Broadcaster interface {
	RunNow(ctx context.Context) (broadcast.Report, error)
}

// Handlers routes commands and callback queries.
type Handlers struct {
	subs   Subscriptions
	runner Broadcaster
	logger *slog.Logger
	routes map[string]telegram.HandlerFunc
}

// New wires the handlers. Commands that act on every subscriber are limited
// to the ids allowed by admins.
func New(subs Subscriptions, runner Broadcaster, admins *middleware.ACL, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{subs: subs, runner: runner, logger: logger.With("component", "bot")}
	h.routes = map[string]telegram.HandlerFunc{
		"start":   h.Start,
		"stop":    h.Stop,
		"ce_ids":  h.EmojiIDs,
		"test":    admins.Middleware(h.Test),
		"ce_test": admins.Middleware(h.EmojiTest),
	}
	return h
}

// Handle routes updates to command handlers.
func (h *Handlers) Handle(ctx context.Context, api telegram.API, upd *models.Update) {
	if upd.CallbackQuery != nil {
		h.Callback(ctx, api, upd)
		return
	}
	msg := upd.Message
	if msg == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	name, _ := parseCommand(msg.Text)
	if fn, ok := h.routes[name]; ok {
		fn(ctx, api, upd)
	}
}

// parseCommand splits "/name@bot args" into the lower-cased name and args.
func parseCommand(text string) (string, string) {
	head, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(args)
}

func (h *Handlers) reply(ctx context.Context, api telegram.API, chatID int64, text string) {
	if _, err := api.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.logger.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}
