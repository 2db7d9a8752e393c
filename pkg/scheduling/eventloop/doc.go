/*
Package eventloop provides a single-goroutine executor for callers that want
every state transition of a rate-limited wrapper to happen on one thread.

A Loop runs posted tasks in order and implements clock.Scheduler, so it can be
passed as a wrapper's Scheduler. Timer callbacks then run on the loop too:

	loop := eventloop.New()
	defer loop.Shutdown(context.Background())

	cfg := debounce.DefaultConfig(200 * time.Millisecond)
	cfg.Scheduler = loop
	d, _ := debounce.NewWithConfig(save, cfg)

	loop.Post(func() { d.Call(nil, doc) })

Post never blocks; the queue is unbounded. Do posts a task and waits for it.
A panicking task does not stop the loop: Do returns the panic as an error and
Post hands it to Config.PanicHandler, or logs it.

Shutdown rejects new tasks with errors.ErrClosed, drains what is already
queued, and waits for the goroutine to exit. Timers that fire afterwards are
dropped.
*/
package eventloop
