// Package scheduler runs jobs on cron schedules in a fixed time zone on top of
// github.com/robfig/cron/v3.
//
// Schedules use six fields with seconds first ("0 30 9 * * *" fires daily at
// 09:30:00) or descriptors such as "@every 5m". Parse a spec up front with
// Parse and register it later with AddSchedule, which cannot fail; this lets
// callers validate a whole set of schedules before touching live entries.
//
//	s := scheduler.New(scheduler.Config{Logger: logger, Location: loc})
//	sched, err := scheduler.Parse("0 0 9 * * *")
//	if err != nil {
//		return err
//	}
//	s.AddSchedule(sched, job, scheduler.JobOptions{Name: "09:00", SkipIfRunning: true})
//	s.Start()
//	defer s.Stop(ctx)
//
// Jobs receive a context cancelled when Stop gives up waiting. Panics inside
// jobs are recovered and logged.
package scheduler
