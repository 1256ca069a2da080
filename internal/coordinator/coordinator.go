// Package coordinator keeps the live cron entries in line with the stored
// schedule and binds each of them to a broadcast run.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"dailysender/internal/adapter/scheduler"
	"dailysender/internal/broadcast"
	"dailysender/internal/schedule"
	"dailysender/internal/shared"
)

var (
	// ErrNotRunning is returned by Reconcile before Start or after Stop.
	ErrNotRunning = errors.New("coordinator is not running")
	// ErrBusy is returned by RunNow while another broadcast is in progress.
	ErrBusy = errors.New("broadcast already in progress")
)

// TriggerSource lists the triggers that should be armed.
type TriggerSource interface {
	List() []schedule.Trigger
}

// Runner performs one broadcast.
type Runner interface {
	Run(ctx context.Context) broadcast.Report
}

// Config configures a Coordinator.
type Config struct {
	Logger   *slog.Logger
	Location *time.Location
	// RunTimeout bounds a single scheduled broadcast; zero means no bound.
	RunTimeout time.Duration
}

// Status is a point-in-time view for the admin surface.
type Status struct {
	Running  bool
	Triggers []schedule.Trigger
	NextRun  time.Time
	LastRun  time.Time
	Last     broadcast.Report
}

type armed struct {
	trigger schedule.Trigger
	id      scheduler.EntryID
}

// Coordinator owns the scheduler and its entries. States: stopped, running.
type Coordinator struct {
	source     TriggerSource
	runner     Runner
	logger     *slog.Logger
	location   *time.Location
	runTimeout time.Duration
	parse      func(string) (scheduler.Schedule, error)

	mu    sync.Mutex
	sched *scheduler.Scheduler
	live  []armed

	busy    atomic.Bool
	lastMu  sync.Mutex
	lastRun time.Time
	last    broadcast.Report
	manual  *inflight
}

// inflight is a manual run that Stop may have to wait for or cancel.
type inflight struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped Coordinator.
func New(source TriggerSource, runner Runner, cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Coordinator{
		source:     source,
		runner:     runner,
		logger:     logger.With("component", "coordinator"),
		location:   loc,
		runTimeout: cfg.RunTimeout,
		parse:      scheduler.Parse,
	}
}

// Start creates and starts the scheduler. Calling Start while running does nothing.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sched != nil {
		return
	}
	c.sched = scheduler.New(scheduler.Config{Logger: c.logger, Location: c.location})
	c.sched.Start()
	c.logger.Info("coordinator started", "location", c.location.String())
}

// Reconcile replaces the live entries with one per trigger from the source.
// Every trigger is parsed before any entry is touched; on a parse failure the
// previous entries stay armed and the error is returned.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sched == nil {
		return ErrNotRunning
	}

	triggers := c.source.List()
	prepared := make([]scheduler.Schedule, len(triggers))
	for i, t := range triggers {
		sched, err := c.parse(t.CronSpec())
		if err != nil {
			c.logger.Error("reconcile aborted, keeping current schedule",
				"trigger", t.String(), "error", err, "armed", len(c.live))
			return shared.MarkKind(fmt.Errorf("arm trigger %s: %w", t, err), shared.KindInternal)
		}
		prepared[i] = sched
	}

	for _, a := range c.live {
		c.sched.Remove(a.id)
	}
	c.live = c.live[:0]

	for i, t := range triggers {
		id := c.sched.AddSchedule(prepared[i], c.scheduledRun(t), scheduler.JobOptions{
			Name:          t.String(),
			Timeout:       c.runTimeout,
			SkipIfRunning: true,
		})
		c.live = append(c.live, armed{trigger: t, id: id})
	}

	c.logger.Info("schedule reconciled", "triggers", formatTriggers(triggers))
	return nil
}

// Triggers returns the currently armed triggers in ascending order.
func (c *Coordinator) Triggers() []schedule.Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]schedule.Trigger, len(c.live))
	for i, a := range c.live {
		out[i] = a.trigger
	}
	slices.SortFunc(out, schedule.Compare)
	return out
}

// Running reports whether the coordinator has been started and not stopped.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sched != nil
}

// Status reports the armed triggers, the next firing and the last run.
func (c *Coordinator) Status() Status {
	st := Status{Triggers: c.Triggers()}

	c.mu.Lock()
	if c.sched != nil {
		st.Running = true
		for _, e := range c.sched.Entries() {
			if !e.Next.IsZero() {
				st.NextRun = e.Next.In(c.location)
				break
			}
		}
	}
	c.mu.Unlock()

	c.lastMu.Lock()
	st.LastRun, st.Last = c.lastRun, c.last
	c.lastMu.Unlock()
	return st
}

// RunNow performs a broadcast immediately, outside the schedule. The run
// keeps the values of ctx but not its cancellation: once started it reaches
// every recipient unless Stop gives up waiting for it.
func (c *Coordinator) RunNow(ctx context.Context) (broadcast.Report, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return broadcast.Report{}, ErrBusy
	}
	defer c.busy.Store(false)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &inflight{cancel: cancel, done: make(chan struct{})}
	c.lastMu.Lock()
	c.manual = run
	c.lastMu.Unlock()
	defer func() {
		cancel()
		c.lastMu.Lock()
		c.manual = nil
		c.lastMu.Unlock()
		close(run.done)
	}()

	c.logger.Info("manual broadcast requested")
	return c.record(c.runner.Run(runCtx)), nil
}

// Stop removes every entry and stops the scheduler, waiting for a running
// broadcast, scheduled or manual, until ctx expires; then the run is
// canceled. Stopping a stopped coordinator does nothing.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sched == nil {
		return nil
	}
	for _, a := range c.live {
		c.sched.Remove(a.id)
	}
	c.live = nil

	err := c.sched.Stop(ctx)
	if werr := c.waitManual(ctx); err == nil {
		err = werr
	}
	c.sched = nil
	c.logger.Info("coordinator stopped")
	return err
}

func (c *Coordinator) waitManual(ctx context.Context) error {
	c.lastMu.Lock()
	run := c.manual
	c.lastMu.Unlock()
	if run == nil {
		return nil
	}

	select {
	case <-run.done:
		return nil
	case <-ctx.Done():
		c.logger.Warn("manual broadcast still running at stop, canceling")
		run.cancel()
		<-run.done
		return ctx.Err()
	}
}

func (c *Coordinator) scheduledRun(t schedule.Trigger) scheduler.JobFunc {
	return func(ctx context.Context) error {
		if !c.busy.CompareAndSwap(false, true) {
			c.logger.Warn("previous broadcast still running, trigger skipped", "trigger", t.String())
			return nil
		}
		defer c.busy.Store(false)

		c.logger.Info("trigger fired", "trigger", t.String())
		c.record(c.runner.Run(ctx))
		return nil
	}
}

func (c *Coordinator) record(r broadcast.Report) broadcast.Report {
	c.lastMu.Lock()
	c.lastRun, c.last = time.Now(), r
	c.lastMu.Unlock()
	return r
}

func formatTriggers(ts []schedule.Trigger) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.String()
	}
	return out
}
