package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"dailysender/internal/adapter/telegram"
)

// SlowDownText отправляется при превышении лимита
const SlowDownText = "Too many requests, please slow down."

// RateLimiter restricts request frequency per user.
type RateLimiter struct {
	mu   sync.Mutex
	last map[int64]time.Time
	rate time.Duration
	now  func() time.Time
}

// NewRateLimiter creates limiter with given rate.
func NewRateLimiter(rate time.Duration) *RateLimiter {
	return &RateLimiter{last: make(map[int64]time.Time), rate: rate, now: time.Now}
}

// Allow returns false if user hits the limit.
func (r *RateLimiter) Allow(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if t, ok := r.last[userID]; ok && now.Sub(t) < r.rate {
		return false
	}
	r.last[userID] = now
	if len(r.last) > 10_000 {
		r.prune(now)
	}
	return true
}

// prune убирает записи старше окна; вызывается под mu
func (r *RateLimiter) prune(now time.Time) {
	for id, t := range r.last {
		if now.Sub(t) >= r.rate {
			delete(r.last, id)
		}
	}
}

// Middleware checks rate limit before calling next handler. Callback queries
// pass through: each of them has to be answered.
func (r *RateLimiter) Middleware(next telegram.HandlerFunc) telegram.HandlerFunc {
	return func(ctx context.Context, api telegram.API, upd *models.Update) {
		if upd.CallbackQuery != nil {
			next(ctx, api, upd)
			return
		}
		uid := telegram.UserID(upd)
		if uid != 0 && !r.Allow(uid) {
			if chat := telegram.ChatID(upd); chat != 0 {
				_, _ = api.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chat,
					Text:   SlowDownText,
				})
			}
			return
		}
		next(ctx, api, upd)
	}
}
