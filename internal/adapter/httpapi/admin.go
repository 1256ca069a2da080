package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dailysender/internal/shared"
)

type userView struct {
	ChatID         int64  `json:"chat_id"`
	CreatedAt      string `json:"created_at"`
	CreatedAtLocal string `json:"created_at_local"`
	TZ             string `json:"tz"`
}

type reportView struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// reload re-reads both JSON files and re-arms the scheduler.
func (a *api) reload(c *gin.Context) {
	groupsChanged, err := a.Groups.Reload()
	if err != nil {
		a.fail(c, err)
		return
	}
	schedulesChanged, err := a.Schedules.Reload()
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.Scheduler.Reconcile(c.Request.Context()); err != nil {
		a.fail(c, err)
		return
	}
	a.Logger.Info("reloaded from disk", "groups_changed", groupsChanged, "schedules_changed", schedulesChanged)
	ok(c, gin.H{
		"groups_changed":    groupsChanged,
		"schedules_changed": schedulesChanged,
		"schedules":         viewTriggers(a.Scheduler.Status().Triggers),
	})
}

func (a *api) sendNow(c *gin.Context) {
	report, err := a.Scheduler.RunNow(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, gin.H{"report": reportView{
		RunID:     report.RunID,
		Total:     report.Total,
		Delivered: report.Delivered,
		Failed:    report.Failed,
	}})
}

func (a *api) listUsers(c *gin.Context) {
	rs, err := a.Recipients.List(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	out := make([]userView, len(rs))
	for i, r := range rs {
		out[i] = userView{
			ChatID:         r.ChatID,
			CreatedAt:      r.SubscribedAt.UTC().Format(time.RFC3339),
			CreatedAtLocal: r.SubscribedAt.In(a.Location).Format(time.RFC3339),
			TZ:             a.Location.String(),
		}
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) deleteUser(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		a.fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}
	removed, err := a.Recipients.Remove(c.Request.Context(), chatID)
	if err != nil {
		a.fail(c, err)
		return
	}
	ok(c, gin.H{"removed": removed})
}
