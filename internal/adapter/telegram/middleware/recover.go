package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot/models"

	"dailysender/internal/adapter/telegram"
)

// Recover логирует панику обработчика, чтобы воркер диспетчера продолжал работу.
func Recover(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next telegram.HandlerFunc) telegram.HandlerFunc {
		return func(ctx context.Context, api telegram.API, upd *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("telegram handler panic",
						"panic", r,
						"update_id", upd.ID,
						"chat_id", telegram.ChatID(upd),
						"stack", string(debug.Stack()))
				}
			}()
			next(ctx, api, upd)
		}
	}
}
