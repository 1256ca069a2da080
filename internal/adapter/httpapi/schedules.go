package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"dailysender/internal/schedule"
	"dailysender/internal/shared"
)

type triggerView struct {
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Time   string `json:"time"`
}

// addScheduleRequest takes either hour and minute or a "HH:MM" time.
type addScheduleRequest struct {
	Hour   *int   `json:"hour" binding:"required_without=Time"`
	Minute *int   `json:"minute"`
	Time   string `json:"time" binding:"required_without=Hour"`
}

func (a *api) listSchedules(c *gin.Context) {
	c.JSON(http.StatusOK, viewTriggers(a.Schedules.List()))
}

func (a *api) addSchedule(c *gin.Context) {
	var req addScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, shared.MarkKind(err, shared.KindValidation))
		return
	}

	var t schedule.Trigger
	if req.Time != "" {
		parsed, err := schedule.ParseTrigger(req.Time)
		if err != nil {
			a.fail(c, err)
			return
		}
		t = parsed
	} else {
		t.Hour = *req.Hour
		if req.Minute != nil {
			t.Minute = *req.Minute
		}
	}

	if err := a.Schedules.Add(t.Hour, t.Minute); err != nil {
		a.fail(c, err)
		return
	}
	a.rearm(c)
}

func (a *api) deleteSchedule(c *gin.Context) {
	hour, err := pathInt(c, "hour")
	if err != nil {
		a.fail(c, err)
		return
	}
	minute, err := pathInt(c, "minute")
	if err != nil {
		a.fail(c, err)
		return
	}
	if _, err := schedule.NewTrigger(hour, minute); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.Schedules.Remove(hour, minute); err != nil {
		a.fail(c, err)
		return
	}
	a.rearm(c)
}

// rearm reconciles the scheduler after a schedule edit and reports the armed set.
func (a *api) rearm(c *gin.Context) {
	if err := a.Scheduler.Reconcile(c.Request.Context()); err != nil {
		a.fail(c, fmt.Errorf("schedule saved but not armed: %w", err))
		return
	}
	ok(c, gin.H{"schedules": viewTriggers(a.Scheduler.Status().Triggers)})
}

func viewTriggers(ts []schedule.Trigger) []triggerView {
	out := make([]triggerView, len(ts))
	for i, t := range ts {
		out[i] = triggerView{Hour: t.Hour, Minute: t.Minute, Time: t.String()}
	}
	return out
}

func formatTriggers(ts []schedule.Trigger) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
