/*
Package settle provides debounce and throttle wrappers for Go functions, with
an injectable clock so the timing behavior can be tested without sleeping.

Rate Limiting (pkg/ratelimit):
  - debounce: Invoke once calls have been quiet for a wait period, with
    optional leading edge and a max wait ceiling
  - throttle: Invoke at most once per window, on the leading and/or trailing
    edge
  - invocation: Target signature, edges, observers and detached failure
    reporting shared by both wrappers

Scheduling (pkg/scheduling):
  - eventloop: Single-goroutine executor usable as a wrapper's scheduler
  - scheduler: Interval, one-shot and cron jobs that drive wrappers

Supporting packages:
  - metrics: Prometheus observer for wrapper and scheduler events
  - sink/redispub: Redis publish target for invalidation fan-out
  - config, logger: YAML policies and slog setup for the settle command

Example usage:

	import (
		"github.com/vnykmshr/settle/pkg/ratelimit/debounce"
		"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
	)

	save, _ := debounce.NewWithConfig(invocation.Action(func(doc ...string) {
		persist(doc[0])
	}), debounce.Config{
		Wait:     time.Second,
		MaxWait:  5 * time.Second,
		Trailing: true,
	})

	save.Call(nil, draft) // persisted after a quiet second, or within 5s

Failures of invocations made from timers are passed to Config.OnError, or to
the process-wide handler installed with invocation.SetUnhandledHandler.

See individual package documentation for detailed usage and examples.
*/
package settle
