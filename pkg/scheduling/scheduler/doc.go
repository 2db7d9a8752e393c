// Package scheduler runs jobs on intervals, cron schedules, or once after a delay.
//
// It is the driver side of a rate-limited wrapper: a polling job issues calls at
// a fixed cadence and a debouncer or throttler decides which of them reach the
// target.
//
// Basic Usage:
//
//	s := scheduler.New()
//	defer func() { <-s.Stop() }()
//
//	// Poll every second; the throttler forwards at most one call per 5s.
//	s.Every("poll", time.Second, func(at time.Time) {
//		th.Call(nil, at)
//	})
//
//	// Six-field expressions take a leading seconds field.
//	s.Cron("flush", "*/30 * * * * *", func(time.Time) {
//		flush.Call(nil)
//	})
//
//	s.After("warmup", 10*time.Second, func(time.Time) { warm() })
//
// Timers come from Config.Scheduler, so a virtual clock drives every task
// deterministically in tests. Interval tasks keep their original cadence unless
// a run falls behind, in which case the next run is one interval after it.
//
// Task Management:
//
//	s.List()          // tasks ordered by next run
//	s.Next("poll")    // next run time
//	s.Cancel("poll")  // true if the task existed
//	s.CancelAll()
//
// A panicking job is recovered, logged and counted in the scheduler metrics; its
// task stays scheduled. Stop cancels everything and waits for running jobs.
package scheduler
