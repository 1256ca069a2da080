// Package httpapi serves the JSON admin API and, in webhook mode, the
// Telegram webhook endpoint.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dailysender/internal/broadcast"
	"dailysender/internal/content"
	"dailysender/internal/coordinator"
	"dailysender/internal/recipient"
	"dailysender/internal/schedule"
	"dailysender/internal/shared"
)

// AdminKeyHeader carries the admin key on every /api request.
const AdminKeyHeader = "X-Admin-Key"

// Groups is the message group pool.
type Groups interface {
	List() []content.Group
	Add(g content.Group) (content.Group, error)
	Update(index int, patch content.Patch) (content.Group, error)
	Delete(index int) error
	Reload() (bool, error)
}

// Schedules is the trigger store.
type Schedules interface {
	List() []schedule.Trigger
	Add(hour, minute int) error
	Remove(hour, minute int) error
	Reload() (bool, error)
}

// Recipients is the subscriber registry.
type Recipients interface {
	List(ctx context.Context) ([]recipient.Recipient, error)
	Remove(ctx context.Context, chatID int64) (bool, error)
}

// Scheduler arms triggers and runs broadcasts.
type Scheduler interface {
	Reconcile(ctx context.Context) error
	RunNow(ctx context.Context) (broadcast.Report, error)
	Status() coordinator.Status
}

// Deps are the collaborators of the API.
type Deps struct {
	Groups     Groups
	Schedules  Schedules
	Recipients Recipients
	Scheduler  Scheduler
	// Webhook, when set, is mounted at POST /telegram/webhook.
	Webhook  http.Handler
	AdminKey string
	Location *time.Location
	Logger   *slog.Logger
}

type api struct {
	Deps
}

// NewRouter builds the gin engine. With an empty AdminKey every /api route
// answers 401.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = d.Logger.With("component", "httpapi")
	if d.Location == nil {
		d.Location = time.Local
	}
	a := &api{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), a.requestLog)
	r.GET("/health", a.health)
	if d.Webhook != nil {
		r.POST("/telegram/webhook", gin.WrapH(d.Webhook))
	}

	g := r.Group("/api", a.requireAdmin)
	g.GET("/groups", a.listGroups)
	g.POST("/groups", a.addGroup)
	g.PATCH("/groups/:idx", a.updateGroup)
	g.DELETE("/groups/:idx", a.deleteGroup)
	g.GET("/schedules", a.listSchedules)
	g.POST("/schedules", a.addSchedule)
	g.DELETE("/schedules/:hour/:minute", a.deleteSchedule)
	g.POST("/reload", a.reload)
	g.POST("/send-now", a.sendNow)
	g.GET("/users", a.listUsers)
	g.DELETE("/users/:chat_id", a.deleteUser)
	return r
}

// NewServer wraps h in an http.Server with conservative timeouts.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func (a *api) requireAdmin(c *gin.Context) {
	key := c.GetHeader(AdminKeyHeader)
	if a.AdminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(a.AdminKey)) != 1 {
		a.fail(c, shared.ErrUnauthorized)
		c.Abort()
		return
	}
	c.Next()
}

func (a *api) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	status := c.Writer.Status()
	attrs := []any{
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", status,
		"duration", time.Since(start),
	}
	switch {
	case status >= http.StatusInternalServerError:
		a.Logger.Error("request", attrs...)
	case status >= http.StatusBadRequest:
		a.Logger.Warn("request", attrs...)
	default:
		a.Logger.Debug("request", attrs...)
	}
}

func (a *api) health(c *gin.Context) {
	st := a.Scheduler.Status()
	body := gin.H{
		"ok":        true,
		"time":      time.Now().UTC().Format(time.RFC3339),
		"scheduler": st.Running,
		"triggers":  formatTriggers(st.Triggers),
	}
	if !st.NextRun.IsZero() {
		body["next_run"] = st.NextRun.In(a.Location).Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

func ok(c *gin.Context, extra gin.H) {
	body := gin.H{"ok": true}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// fail writes err as {"ok":false,"error":...} with a status derived from its kind.
func (a *api) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error("admin request failed", "path", c.FullPath(), "kind", shared.KindOf(err), "error", err)
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrNotRunning):
		return http.StatusServiceUnavailable
	}
	switch shared.KindOf(err) {
	case shared.KindValidation, shared.KindInvalidTime:
		return http.StatusBadRequest
	case shared.KindOutOfRange, shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
