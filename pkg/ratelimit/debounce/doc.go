/*
Package debounce coalesces bursts of calls into a single invocation of a target
function, made once the calls have been quiet for a wait period.

A burst is a sequence of calls that each arrive within Wait of the previous one.
With the default configuration only the trailing edge fires: the target runs
Wait after the last call of the burst, with that call's arguments.

	search, _ := debounce.New(invocation.Action(func(q ...string) {
		runQuery(q[0])
	}), 300*time.Millisecond)

	search.Call(nil, "g")
	search.Call(nil, "go")
	search.Call(nil, "gop") // runQuery("gop") 300ms from now

Leading and trailing edges:

  - Leading: the first call of a burst invokes immediately.
  - Trailing: the latest call of a burst is delivered after the quiet period.
  - Both: a burst of two or more calls invokes on both edges; a single call
    invokes once.
  - Neither: the target is never invoked. This is allowed.

Max wait:

Under continuous calls a plain debounce never fires. MaxWait sets a ceiling: while
the burst continues, the latest pending arguments are delivered every MaxWait.

	cfg := debounce.DefaultConfig(time.Second)
	cfg.MaxWait = 5 * time.Second
	save, _ := debounce.NewWithConfig(persist, cfg)

Results and errors:

Call returns the result of the most recent successful invocation, which can be
stale. A failing leading invocation returns its error from Call. Trailing and
max-wait invocations run on timer callbacks; their errors and panics are sent to
Config.OnError, or to invocation.ReportUnhandled when no handler is set.

Time:

Config.Scheduler supplies the clock and timers. Tests use a virtual scheduler to
drive the state machine without sleeping; production code leaves it nil to use
the runtime timers, or passes an eventloop.Loop to run every callback on one
goroutine.
*/
package debounce
