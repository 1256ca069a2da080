package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailysender/internal/broadcast"
)

// Sender delivers broadcast payloads through the Bot API.
type Sender struct {
	api    API
	logger *slog.Logger
}

var _ broadcast.Transport = (*Sender)(nil)

// NewSender returns a Sender using api.
func NewSender(api API, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{api: api, logger: logger.With("component", "telegram")}
}

// SendText sends p as a plain message. No parse mode is set; custom emoji are
// carried by entities only.
func (s *Sender) SendText(ctx context.Context, chatID int64, p broadcast.Payload) error {
	params := &bot.SendMessageParams{
		ChatID:   chatID,
		Text:     p.Text,
		Entities: Entities(p.Annotations),
	}
	if kb := Keyboard(p.Buttons); kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := s.api.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	s.logger.Debug("message sent", "chat_id", chatID)
	return nil
}

// SendImage uploads the file at path as a photo with p as its caption.
func (s *Sender) SendImage(ctx context.Context, chatID int64, path string, p broadcast.Payload) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	params := &bot.SendPhotoParams{
		ChatID:          chatID,
		Photo:           &models.InputFileUpload{Filename: filepath.Base(path), Data: f},
		Caption:         p.Text,
		CaptionEntities: Entities(p.Annotations),
	}
	if kb := Keyboard(p.Buttons); kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := s.api.SendPhoto(ctx, params); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	s.logger.Debug("photo sent", "chat_id", chatID, "image", filepath.Base(path))
	return nil
}
