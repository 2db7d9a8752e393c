/*
Package scheduling provides the execution side of settle's wrappers.

  - eventloop: Runs tasks and timer callbacks on a single goroutine
  - scheduler: Time-based job scheduling with interval, one-shot and cron jobs

Event Loop:

A Loop implements clock.Scheduler, so a debouncer or throttler built with it
runs calls and timer callbacks on the loop goroutine:

	loop := eventloop.New()
	defer loop.Shutdown(context.Background())

	cfg := debounce.DefaultConfig(200 * time.Millisecond)
	cfg.Scheduler = loop
	d, _ := debounce.NewWithConfig(fn, cfg)

	loop.Do(ctx, func() { d.Call(nil, "event") })

Job Scheduler:

	s := scheduler.New()
	defer func() { <-s.Stop() }()

	s.Every("poll", time.Second, func(at time.Time) { th.Call(nil, at) })
	s.Cron("report", "0 9 * * MON-FRI", func(time.Time) { report.Call(nil) })

Both components accept a clock.Scheduler, so tests can drive them with a
virtual clock.
*/
package scheduling
