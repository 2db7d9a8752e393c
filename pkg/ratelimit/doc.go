/*
Package ratelimit groups the call-rate policies provided by settle.

Two wrappers are available, both built on the shared invocation package:

  - debounce: invoke once a burst of calls has been quiet for a wait period
  - throttle: invoke at most once per wait window

Debounce suits input that should only be acted on once it settles:

	search, _ := debounce.New(invocation.Action(func(q ...string) {
		runQuery(q[0])
	}), 300*time.Millisecond)

Throttle suits streams that should keep producing updates at a bounded rate:

	progress, _ := throttle.New(invocation.Action(func(pct ...int) {
		render(pct[0])
	}), time.Second)

Both wrappers:
  - Forward an explicit receiver and the latest call's arguments to the target
  - Return the result of the most recent successful invocation from Call
  - Take their clock and timers from an injected clock.Scheduler
  - Report detached failures to Config.OnError or invocation.ReportUnhandled

All wrappers are safe for concurrent use.
*/
package ratelimit
