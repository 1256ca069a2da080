package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dailysender/internal/adapter/telegram/middleware"
	"dailysender/internal/broadcast"
	"dailysender/internal/coordinator"
	"dailysender/internal/richtext"
)

const adminID = 1000

type fakeAPI struct {
	messages []*bot.SendMessageParams
	answers  []*bot.AnswerCallbackQueryParams
}

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.messages = append(f.messages, p)
	return &models.Message{}, nil
}

func (f *fakeAPI) SendPhoto(context.Context, *bot.SendPhotoParams) (*models.Message, error) {
	return &models.Message{}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, p *bot.AnswerCallbackQueryParams) (bool, error) {
	f.answers = append(f.answers, p)
	return true, nil
}

func (f *fakeAPI) texts() []string {
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Text
	}
	return out
}

type memSubs struct {
	ids map[int64]bool
	err error
}

func (m *memSubs) Add(_ context.Context, id int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	added := !m.ids[id]
	m.ids[id] = true
	return added, nil
}

func (m *memSubs) Remove(_ context.Context, id int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	removed := m.ids[id]
	delete(m.ids, id)
	return removed, nil
}

func (m *memSubs) Contains(_ context.Context, id int64) (bool, error) {
	return m.ids[id], m.err
}

type stubRunner struct {
	runs int
	err  error
}

func (s *stubRunner) RunNow(context.Context) (broadcast.Report, error) {
	s.runs++
	if s.err != nil {
		return broadcast.Report{}, s.err
	}
	return broadcast.Report{Total: 3, Delivered: 2, Failed: 1}, nil
}

func newHandlers() (*Handlers, *memSubs, *stubRunner) {
	subs := &memSubs{ids: map[int64]bool{}}
	runner := &stubRunner{}
	return New(subs, runner, middleware.NewACL([]int64{adminID}), nil), subs, runner
}

func command(text string, from int64) *models.Update {
	return &models.Update{Message: &models.Message{
		Text: text,
		Chat: models.Chat{ID: from},
		From: &models.User{ID: from},
	}}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in, name, args string
	}{
		{"/start", "start", ""},
		{"/START@DailyBot", "start", ""},
		{"/ce_test 123  ", "ce_test", "123"},
		{"/ce_test@bot 5 6", "ce_test", "5 6"},
	}
	for _, tt := range tests {
		name, args := parseCommand(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.args, args, tt.in)
	}
}

func TestStartStop(t *testing.T) {
	h, subs, _ := newHandlers()
	api := &fakeAPI{}
	ctx := context.Background()

	h.Handle(ctx, api, command("/stop", 7))
	h.Handle(ctx, api, command("/start", 7))
	h.Handle(ctx, api, command("/start", 7))
	assert.True(t, subs.ids[7])

	h.Handle(ctx, api, command("/stop", 7))
	assert.False(t, subs.ids[7])

	assert.Equal(t, []string{notSubscribedText, subscribedText, subscribedText, unsubscribedText}, api.texts())
}

func TestStart_StorageFailure(t *testing.T) {
	h, subs, _ := newHandlers()
	subs.err = errors.New("disk full")
	api := &fakeAPI{}

	h.Handle(context.Background(), api, command("/start", 7))
	assert.Equal(t, []string{failureText}, api.texts())
}

func TestHandle_IgnoresPlainTextAndUnknown(t *testing.T) {
	h, _, _ := newHandlers()
	api := &fakeAPI{}

	h.Handle(context.Background(), api, command("hello", 7))
	h.Handle(context.Background(), api, command("/unknown", 7))
	h.Handle(context.Background(), api, &models.Update{})
	assert.Empty(t, api.messages)
}

func TestTest_AdminOnly(t *testing.T) {
	h, _, runner := newHandlers()
	api := &fakeAPI{}

	h.Handle(context.Background(), api, command("/test", 7))
	assert.Zero(t, runner.runs)
	assert.Equal(t, []string{middleware.DeniedText}, api.texts())

	api.messages = nil
	h.Handle(context.Background(), api, command("/test", adminID))
	assert.Equal(t, 1, runner.runs)
	require.Len(t, api.messages, 2)
	assert.Equal(t, "Delivered 2 of 3 (failed 1).", api.messages[1].Text)
}

func TestTest_Busy(t *testing.T) {
	h, _, runner := newHandlers()
	runner.err = coordinator.ErrBusy
	api := &fakeAPI{}

	h.Handle(context.Background(), api, command("/test", adminID))
	require.Len(t, api.messages, 2)
	assert.Contains(t, api.messages[1].Text, "already running")
}

func TestEmojiIDs(t *testing.T) {
	h, _, _ := newHandlers()
	api := &fakeAPI{}

	upd := command("/ce_ids", 7)
	upd.Message.ReplyToMessage = &models.Message{
		CaptionEntities: []models.MessageEntity{
			{Type: models.MessageEntityTypeBold},
			{Type: models.MessageEntityTypeCustomEmoji, CustomEmojiID: "111"},
			{Type: models.MessageEntityTypeCustomEmoji, CustomEmojiID: "222"},
		},
	}
	h.Handle(context.Background(), api, upd)

	require.Len(t, api.messages, 1)
	assert.Contains(t, api.messages[0].Text, "111\n222")

	api.messages = nil
	h.Handle(context.Background(), api, command("/ce_ids", 7))
	assert.Equal(t, []string{"这条消息里没有 Telegram 自定义表情。"}, api.texts())
}

func TestEmojiTest(t *testing.T) {
	h, _, _ := newHandlers()
	api := &fakeAPI{}

	h.Handle(context.Background(), api, command("/ce_test 5368324170671202286", adminID))

	require.Len(t, api.messages, 1)
	p := api.messages[0]
	assert.Equal(t, "测试 "+richtext.Joiner+" OK", p.Text)
	require.Len(t, p.Entities, 1)
	assert.Equal(t, 3, p.Entities[0].Offset)
	assert.Equal(t, "5368324170671202286", p.Entities[0].CustomEmojiID)

	for _, bad := range []string{"/ce_test", "/ce_test abc"} {
		api.messages = nil
		h.Handle(context.Background(), api, command(bad, adminID))
		assert.Equal(t, []string{"用法：/ce_test <custom_emoji_id>"}, api.texts(), bad)
	}
}

func TestCallback(t *testing.T) {
	h, _, _ := newHandlers()
	api := &fakeAPI{}

	upd := &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:      "cb1",
		From:    models.User{ID: 7},
		Data:    "info:promo",
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{Chat: models.Chat{ID: 70}}},
	}}
	h.Handle(context.Background(), api, upd)

	require.Len(t, api.answers, 1)
	assert.Equal(t, "cb1", api.answers[0].CallbackQueryID)
	require.Len(t, api.messages, 1)
	assert.Equal(t, int64(70), api.messages[0].ChatID)
	assert.Equal(t, "Info requested: promo", api.messages[0].Text)

	api.messages = nil
	upd.CallbackQuery.Data = "Learn more"
	h.Handle(context.Background(), api, upd)
	assert.Len(t, api.answers, 2)
	assert.Empty(t, api.messages)
}
