// Package metrics provides Prometheus instrumentation for settle components.
//
// Debouncers and throttlers report through the invocation.Observer hook.
// NewObserver adapts a Registry to that hook for one named wrapper:
//
//	reg := metrics.Default() // registers with prometheus.DefaultRegisterer
//
//	cfg := debounce.DefaultConfig(300 * time.Millisecond)
//	cfg.Name = "search"
//	cfg.Observer = metrics.NewObserver(reg, metrics.KindDebounce, "search")
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Available Metrics
//
// ## Wrapper Metrics
//
//   - settle_wrapper_calls_total: Calls made to a wrapper
//   - settle_wrapper_invocations_total: Target invocations, by edge
//   - settle_wrapper_invocation_failures_total: Invocations that returned an error or panicked
//   - settle_wrapper_discarded_total: Pending calls dropped with the trailing edge disabled
//   - settle_wrapper_invocation_duration_seconds: Time spent in the target
//
// ## Task Scheduling Metrics
//
//   - settle_scheduler_task_runs_total: Runs of scheduled tasks
//   - settle_scheduler_task_panics_total: Scheduled runs that panicked
//
// # Labels
//
//   - kind: "debounce" or "throttle"
//   - name: the wrapper name from its Config
//   - edge: "leading", "trailing" or "max_wait"
//   - task: the scheduler task ID
//
// Ratios such as invocations per call show how much a wrapper is coalescing.
package metrics
