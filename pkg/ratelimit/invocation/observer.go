package invocation

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives the lifecycle events of one wrapper. Implementations are
// called with the wrapper lock held and must not call back into the wrapper.
type Observer interface {
	// Called is reported for every call to the wrapper.
	Called()

	// Invoked is reported after the target ran on the given edge.
	Invoked(edge Edge, took time.Duration, err error)

	// Discarded is reported when a pending call is dropped without invocation.
	Discarded()
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) Called() {}

func (NopObserver) Invoked(Edge, time.Duration, error) {}

func (NopObserver) Discarded() {}

// OrNop returns o, or NopObserver when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return NopObserver{}
	}
	return o
}

// ErrorHandler receives failures of detached invocations. name is the
// wrapper's configured name.
type ErrorHandler func(name string, edge Edge, err error)

var unhandled atomic.Pointer[ErrorHandler]

// SetUnhandledHandler replaces the process-wide handler for detached
// invocation failures that have no per-wrapper handler. A nil h restores the
// default, which logs through slog.Default.
func SetUnhandledHandler(h ErrorHandler) {
	if h == nil {
		unhandled.Store(nil)
		return
	}
	unhandled.Store(&h)
}

// ReportUnhandled delivers err to the process-wide handler.
func ReportUnhandled(name string, edge Edge, err error) {
	if h := unhandled.Load(); h != nil {
		(*h)(name, edge, err)
		return
	}
	slog.Default().Error("detached invocation failed",
		slog.String("wrapper", name),
		slog.String("edge", string(edge)),
		slog.Any("error", err),
	)
}

// Report sends err to h, falling back to ReportUnhandled when h is nil.
func (h ErrorHandler) Report(name string, edge Edge, err error) {
	if h == nil {
		ReportUnhandled(name, edge, err)
		return
	}
	h(name, edge, err)
}
