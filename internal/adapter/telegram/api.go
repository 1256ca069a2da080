// Package telegram adapts the go-telegram/bot client to the broadcast
// transport and routes incoming updates to handlers.
package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailysender/internal/content"
	"dailysender/internal/richtext"
)

// API is the part of *bot.Bot used by the adapter.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

var _ API = (*bot.Bot)(nil)

// Update aliases models.Update for brevity.
type Update = models.Update

// HandlerFunc processes a single update.
type HandlerFunc func(ctx context.Context, api API, upd *models.Update)

// Entities converts annotations to custom_emoji message entities.
// It returns nil for no annotations so the parameter is omitted.
func Entities(anns []richtext.Annotation) []models.MessageEntity {
	if len(anns) == 0 {
		return nil
	}
	out := make([]models.MessageEntity, len(anns))
	for i, a := range anns {
		out[i] = models.MessageEntity{
			Type:          models.MessageEntityTypeCustomEmoji,
			Offset:        a.Offset,
			Length:        a.Length,
			CustomEmojiID: a.EmojiID,
		}
	}
	return out
}

// Keyboard builds an inline keyboard with one button per row, or nil when no
// button is usable.
func Keyboard(buttons []content.Button) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		switch {
		case b.Text == "":
		case b.IsLink():
			rows = append(rows, []models.InlineKeyboardButton{{Text: b.Text, URL: b.URL}})
		case b.CallbackData != "":
			rows = append(rows, []models.InlineKeyboardButton{{Text: b.Text, CallbackData: b.CallbackData}})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// ChatID returns the chat an update belongs to, or 0.
func ChatID(u *models.Update) int64 {
	if u.Message != nil {
		return u.Message.Chat.ID
	}
	if cq := u.CallbackQuery; cq != nil {
		if cq.Message.Message != nil {
			return cq.Message.Message.Chat.ID
		}
		if cq.Message.InaccessibleMessage != nil {
			return cq.Message.InaccessibleMessage.Chat.ID
		}
	}
	return 0
}

// UserID returns the sender of an update, or 0.
func UserID(u *models.Update) int64 {
	if m := u.Message; m != nil && m.From != nil {
		return m.From.ID
	}
	if cq := u.CallbackQuery; cq != nil {
		return cq.From.ID
	}
	return 0
}
