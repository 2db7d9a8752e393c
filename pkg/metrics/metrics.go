// Package metrics provides Prometheus instrumentation for settle components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for settle components.
type Registry struct {
	// Wrapper Metrics
	Calls              *prometheus.CounterVec
	Invocations        *prometheus.CounterVec
	InvocationFailures *prometheus.CounterVec
	Discarded          *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec

	// Task Scheduling Metrics
	TaskRuns   *prometheus.CounterVec
	TaskPanics *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry bound to prometheus.DefaultRegisterer,
// creating it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace)
}

func newRegistry(reg prometheus.Registerer, namespace string) *Registry {
	factory := promauto.With(reg)
	wrapperLabels := []string{"kind", "name"}
	edgeLabels := []string{"kind", "name", "edge"}

	return &Registry{
		Calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wrapper",
				Name:      "calls_total",
				Help:      "Total number of calls made to rate-limited wrappers",
			},
			wrapperLabels,
		),

		Invocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wrapper",
				Name:      "invocations_total",
				Help:      "Total number of target invocations by edge",
			},
			edgeLabels,
		),

		InvocationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wrapper",
				Name:      "invocation_failures_total",
				Help:      "Total number of target invocations that returned an error or panicked",
			},
			edgeLabels,
		),

		Discarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "wrapper",
				Name:      "discarded_total",
				Help:      "Total number of pending calls dropped because the trailing edge is disabled",
			},
			wrapperLabels,
		),

		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "wrapper",
				Name:      "invocation_duration_seconds",
				Help:      "Time spent running the target function",
				Buckets:   prometheus.DefBuckets,
			},
			edgeLabels,
		),

		TaskRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "task_runs_total",
				Help:      "Total number of scheduled task runs",
			},
			[]string{"task"},
		),

		TaskPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "task_panics_total",
				Help:      "Total number of scheduled task runs that panicked",
			},
			[]string{"task"},
		),
	}
}
