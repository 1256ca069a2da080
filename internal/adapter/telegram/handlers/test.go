package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot/models"

	"dailysender/internal/adapter/telegram"
	"dailysender/internal/coordinator"
)

// Test handles /test: runs a broadcast to every subscriber right away.
func (h *Handlers) Test(ctx context.Context, api telegram.API, upd *models.Update) {
	chatID := upd.Message.Chat.ID
	h.reply(ctx, api, chatID, "⏳ 正在发送测试消息...")

	report, err := h.runner.RunNow(ctx)
	if errors.Is(err, coordinator.ErrBusy) {
		h.reply(ctx, api, chatID, "A broadcast is already running, try again when it finishes.")
		return
	}
	if err != nil {
		h.logger.Error("test broadcast", "error", err)
		h.reply(ctx, api, chatID, failureText)
		return
	}
	h.reply(ctx, api, chatID, fmt.Sprintf("Delivered %d of %d (failed %d).", report.Delivered, report.Total, report.Failed))
}
