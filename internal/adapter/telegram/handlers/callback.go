package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailysender/internal/adapter/telegram"
)

// InfoPrefix marks action buttons whose press gets a reply in the chat.
const InfoPrefix = "info:"

// Callback acknowledges every button press and answers info: buttons.
func (h *Handlers) Callback(ctx context.Context, api telegram.API, upd *models.Update) {
	cq := upd.CallbackQuery
	if _, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            "已接收 👍",
	}); err != nil {
		h.logger.Warn("answer callback", "error", err)
	}
	h.logger.Info("callback received", "data", cq.Data, "user_id", cq.From.ID)

	topic, ok := strings.CutPrefix(cq.Data, InfoPrefix)
	if !ok {
		return
	}
	if chatID := telegram.ChatID(upd); chatID != 0 {
		h.reply(ctx, api, chatID, "Info requested: "+topic)
	}
}
