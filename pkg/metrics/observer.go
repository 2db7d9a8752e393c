package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
)

// Wrapper kinds used as the "kind" label.
const (
	KindDebounce = "debounce"
	KindThrottle = "throttle"
)

// WrapperObserver records wrapper events for one named wrapper.
type WrapperObserver struct {
	registry *Registry
	kind     string
	name     string

	calls     prometheus.Counter
	discarded prometheus.Counter
}

// NewObserver returns an invocation.Observer that records into r under the
// given kind and name labels. A nil registry yields a no-op observer.
func NewObserver(r *Registry, kind, name string) invocation.Observer {
	if r == nil {
		return invocation.NopObserver{}
	}
	return &WrapperObserver{
		registry:  r,
		kind:      kind,
		name:      name,
		calls:     r.Calls.WithLabelValues(kind, name),
		discarded: r.Discarded.WithLabelValues(kind, name),
	}
}

// Called implements invocation.Observer.
func (o *WrapperObserver) Called() {
	o.calls.Inc()
}

// Invoked implements invocation.Observer.
func (o *WrapperObserver) Invoked(edge invocation.Edge, took time.Duration, err error) {
	o.registry.Invocations.WithLabelValues(o.kind, o.name, string(edge)).Inc()
	o.registry.InvocationDuration.WithLabelValues(o.kind, o.name, string(edge)).Observe(took.Seconds())
	if err != nil {
		o.registry.InvocationFailures.WithLabelValues(o.kind, o.name, string(edge)).Inc()
	}
}

// Discarded implements invocation.Observer.
func (o *WrapperObserver) Discarded() {
	o.discarded.Inc()
}
