package app

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"dailysender/internal/adapter/telegram"
	"dailysender/internal/broadcast"
	"dailysender/pkg/retry"
)

// newBot creates the Telegram client, retrying transient getMe failures.
func (a *App) newBot(ctx context.Context, opts ...bot.Option) (*bot.Bot, error) {
	if err := a.cfg.RequireBot(); err != nil {
		return nil, err
	}
	opts = append(opts, bot.WithErrorsHandler(func(err error) {
		a.log.Warn("telegram client error", "error", err)
	}))
	if a.cfg.Telegram.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(a.cfg.Telegram.WebhookSecret))
	}

	var b *bot.Bot
	err := retry.Do(ctx, retry.DefaultConfig(), func(context.Context) error {
		var err error
		b, err = bot.New(a.cfg.Telegram.Token, opts...)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return b, nil
}

// SendNow performs one broadcast outside the server and returns its report.
func (a *App) SendNow(ctx context.Context, stores *Stores) (broadcast.Report, error) {
	b, err := a.newBot(ctx, bot.WithSkipGetMe())
	if err != nil {
		return broadcast.Report{}, err
	}
	exec := broadcast.NewExecutor(stores.Groups, stores.Recipients, telegram.NewSender(b, a.log), a.broadcastConfig(), a.log)
	return exec.Run(ctx), nil
}
