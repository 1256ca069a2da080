package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailysender/internal/adapter/telegram"
	"dailysender/internal/richtext"
)

// EmojiIDs handles /ce_ids: lists custom emoji ids found in the message, or
// in the message it replies to.
func (h *Handlers) EmojiIDs(ctx context.Context, api telegram.API, upd *models.Update) {
	msg := upd.Message
	src := msg
	if msg.ReplyToMessage != nil {
		src = msg.ReplyToMessage
	}

	ids := customEmojiIDs(src.Entities)
	if len(ids) == 0 {
		ids = customEmojiIDs(src.CaptionEntities)
	}
	if len(ids) == 0 {
		h.reply(ctx, api, msg.Chat.ID, "这条消息里没有 Telegram 自定义表情。")
		return
	}
	h.reply(ctx, api, msg.Chat.ID, "custom_emoji_id:\n"+strings.Join(ids, "\n")+
		"\n\n后台文案可写成 <ce:ID> 或 ＜ce：ID＞ 发送这些自定义表情。")
}

// EmojiTest handles /ce_test <id>: echoes the custom emoji through the same
// rendering path as broadcasts.
func (h *Handlers) EmojiTest(ctx context.Context, api telegram.API, upd *models.Update) {
	msg := upd.Message
	_, args := parseCommand(msg.Text)
	id, _, _ := strings.Cut(args, " ")
	if id == "" || strings.Trim(id, "0123456789") != "" {
		h.reply(ctx, api, msg.Chat.ID, "用法：/ce_test <custom_emoji_id>")
		return
	}

	text, anns := richtext.Render("测试 <ce:" + id + "> OK")
	_, err := api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:   msg.Chat.ID,
		Text:     text,
		Entities: telegram.Entities(anns),
	})
	if err != nil {
		h.logger.Warn("custom emoji echo failed", "emoji_id", id, "error", err)
		h.reply(ctx, api, msg.Chat.ID, "Telegram rejected this emoji id: "+err.Error())
	}
}

func customEmojiIDs(ents []models.MessageEntity) []string {
	var ids []string
	for _, e := range ents {
		if e.Type == models.MessageEntityTypeCustomEmoji && e.CustomEmojiID != "" {
			ids = append(ids, e.CustomEmojiID)
		}
	}
	return ids
}
