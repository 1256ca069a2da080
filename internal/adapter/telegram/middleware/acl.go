package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailysender/internal/adapter/telegram"
)

// DeniedText отправляется пользователю без доступа
const DeniedText = "⛔ This command is for admins only."

// ACL проверяет доступ по списку разрешённых Telegram user IDs.
// Пустой список не пускает никого.
type ACL struct{ allowed map[int64]struct{} }

// NewACL создаёт ACL по списку ID
func NewACL(ids []int64) *ACL {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return &ACL{allowed: m}
}

// IsAllowed сообщает, имеет ли пользователь доступ
func (a *ACL) IsAllowed(id int64) bool {
	if id == 0 {
		return false
	}
	_, ok := a.allowed[id]
	return ok
}

// Middleware блокирует выполнение хендлера для неразрешённых пользователей
func (a *ACL) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, api telegram.API, upd *models.Update) {
		if a.IsAllowed(telegram.UserID(upd)) {
			next(ctx, api, upd)
			return
		}
		if chat := telegram.ChatID(upd); chat != 0 && api != nil {
			_, _ = api.SendMessage(ctx, &bot.SendMessageParams{ChatID: chat, Text: DeniedText})
		}
	}
}
