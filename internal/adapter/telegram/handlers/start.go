package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"dailysender/internal/adapter/telegram"
)

const (
	subscribedText    = "✅ Cheers for jumpin’ on the MONOAUD Bot, mate! We’ll sling ya the latest promos as soon as they drop. Stay tuned for the good stuff!"
	unsubscribedText  = "✅ You’ve unsubscribed from the MONOAUD Bot. No worries, mate, you can rejoin anytime to catch our latest promos and offers!"
	notSubscribedText = "❌ G’day mate 👋 You haven’t joined the MONOAUD Bot yet! Send /start to get the latest promos straight to your Telegram."
	failureText       = "Something went wrong, please try again later."
)

// Start handles /start: subscribes the chat. Repeating it is harmless.
func (h *Handlers) Start(ctx context.Context, api telegram.API, upd *models.Update) {
	chatID := upd.Message.Chat.ID
	if _, err := h.subs.Add(ctx, chatID); err != nil {
		h.logger.Error("subscribe", "chat_id", chatID, "error", err)
		h.reply(ctx, api, chatID, failureText)
		return
	}
	h.reply(ctx, api, chatID, subscribedText)
}

// Stop handles /stop: unsubscribes the chat.
func (h *Handlers) Stop(ctx context.Context, api telegram.API, upd *models.Update) {
	chatID := upd.Message.Chat.ID
	removed, err := h.subs.Remove(ctx, chatID)
	if err != nil {
		h.logger.Error("unsubscribe", "chat_id", chatID, "error", err)
		h.reply(ctx, api, chatID, failureText)
		return
	}
	if !removed {
		h.reply(ctx, api, chatID, notSubscribedText)
		return
	}
	h.reply(ctx, api, chatID, unsubscribedText)
}
