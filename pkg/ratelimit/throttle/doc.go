// Package throttle limits how often a target function runs: at most once per
// wait window on the leading edge, plus a trailing invocation with the latest
// arguments when the window closes.
//
// Unlike a debouncer, a throttler keeps firing under a continuous stream of
// calls, which suits scroll and resize handlers or progress reporting.
//
//	report, _ := throttle.New(invocation.Action(func(pct ...int) {
//		log.Printf("progress %d%%", pct[0])
//	}), time.Second)
//
//	for pct := range progress {
//		report.Call(nil, pct)
//	}
//
// Every call replaces the pending arguments, including the call that ran the
// leading invocation. With both edges enabled, an isolated call therefore runs
// twice: once immediately and once when the window closes. Disable Trailing to
// get exactly one invocation per window.
//
// Trailing failures, including recovered panics, go to Config.OnError or to
// invocation.ReportUnhandled. A failing leading invocation returns its error
// from Call.
package throttle
