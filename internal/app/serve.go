package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/errgroup"

	"dailysender/internal/adapter/httpapi"
	"dailysender/internal/adapter/telegram"
	"dailysender/internal/adapter/telegram/handlers"
	"dailysender/internal/adapter/telegram/middleware"
	"dailysender/internal/broadcast"
	"dailysender/internal/coordinator"
	"dailysender/internal/platform/filewatch"
)

const (
	dispatchWorkers = 8
	shutdownTimeout = 10 * time.Second
)

// Run starts the bot, the scheduler, the file watcher and the HTTP server and
// blocks until ctx is canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting", "env", a.cfg.Env, "tz", a.cfg.Location.String(), "data_dir", a.cfg.DataDir)
	if a.cfg.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	stores, err := a.OpenStores(ctx)
	if err != nil {
		return err
	}
	defer stores.Close()

	var disp *telegram.Dispatcher
	b, err := a.newBot(ctx,
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, upd *models.Update) {
			disp.Dispatch(ctx, upd)
		}),
		bot.WithAllowedUpdates([]string{"message", "callback_query"}),
	)
	if err != nil {
		return err
	}

	exec := broadcast.NewExecutor(stores.Groups, stores.Recipients, telegram.NewSender(b, a.log), a.broadcastConfig(), a.log)
	coord := coordinator.New(stores.Schedules, exec, coordinator.Config{
		Logger:     a.log,
		Location:   a.cfg.Location,
		RunTimeout: a.cfg.Broadcast.RunTimeout,
	})
	coord.Start()
	if err := coord.Reconcile(ctx); err != nil {
		_ = coord.Stop(ctx)
		return fmt.Errorf("arm schedules: %w", err)
	}

	cmds := handlers.New(stores.Recipients, coord, middleware.NewACL(a.cfg.AdminIDs), a.log)
	rate := middleware.NewRateLimiter(time.Second)
	disp = telegram.NewDispatcher(b, dispatchWorkers, middleware.Chain(cmds.Handle, middleware.Recover(a.log), rate.Middleware))

	watcher := a.newWatcher(stores, coord)

	deps := httpapi.Deps{
		Groups:     stores.Groups,
		Schedules:  stores.Schedules,
		Recipients: stores.Recipients,
		Scheduler:  coord,
		AdminKey:   a.cfg.HTTP.AdminKey,
		Location:   a.cfg.Location,
		Logger:     a.log,
	}
	webhook := a.cfg.Telegram.WebhookURL != ""
	if webhook {
		if _, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
			URL:         a.cfg.Telegram.WebhookURL,
			SecretToken: a.cfg.Telegram.WebhookSecret,
		}); err != nil {
			_ = coord.Stop(ctx)
			return fmt.Errorf("set webhook: %w", err)
		}
		deps.Webhook = b.WebhookHandler()
	} else if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{}); err != nil {
		a.log.Warn("delete webhook failed", "error", err)
	}
	if a.cfg.HTTP.AdminKey == "" {
		a.log.Warn("ADMIN_KEY is empty, admin API is locked")
	}
	srv := httpapi.NewServer(a.cfg.HTTP.Addr, httpapi.NewRouter(deps))

	// The bot outlives ctx so that it stops after the coordinator.
	botCtx, stopBot := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBot()
	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if webhook {
			b.StartWebhook(botCtx)
			return
		}
		b.Start(botCtx)
	}()
	a.log.Info("bot started", "webhook", webhook, "http_addr", a.cfg.HTTP.Addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown(srv, coord, stopBot, botDone, disp)
	})
	return g.Wait()
}

// newWatcher reloads the JSON documents when they change on disk, so CLI
// edits reach a running server.
func (a *App) newWatcher(stores *Stores, coord *coordinator.Coordinator) *filewatch.Watcher {
	w := filewatch.New(a.cfg.DataDir, filewatch.WithLogger(a.log))
	w.Handle(filepath.Base(stores.Groups.Path()), func(context.Context) {
		changed, err := stores.Groups.Reload()
		if err != nil {
			a.log.Warn("reload groups failed", "error", err)
			return
		}
		if changed {
			a.log.Info("groups reloaded", "count", stores.Groups.Len())
		}
	})
	w.Handle(filepath.Base(stores.Schedules.Path()), func(ctx context.Context) {
		changed, err := stores.Schedules.Reload()
		if err != nil {
			a.log.Warn("reload schedules failed", "error", err)
			return
		}
		if !changed {
			return
		}
		if err := coord.Reconcile(ctx); err != nil && !errors.Is(err, coordinator.ErrNotRunning) {
			a.log.Error("rearm after schedule change failed", "error", err)
		}
	})
	return w
}

// shutdown stops components in order: HTTP, coordinator, bot, dispatcher.
// The database and the log file are closed by the caller.
func (a *App) shutdown(srv *http.Server, coord *coordinator.Coordinator, stopBot context.CancelFunc, botDone <-chan struct{}, disp *telegram.Dispatcher) error {
	a.log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := coord.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("coordinator stop: %w", err))
	}
	stopBot()
	select {
	case <-botDone:
	case <-ctx.Done():
		a.log.Warn("bot did not stop in time")
	}
	disp.Close()
	a.log.Info("stopped")
	return errors.Join(errs...)
}
