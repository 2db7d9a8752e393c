// Package invocation holds the primitives shared by the debounce and throttle
// engines: the target signature, the pending invocation record, the edge
// enumeration, the observer hook and the channel for detached failures.
package invocation

import (
	"fmt"
	"runtime/debug"
	"time"

	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
)

// Func is a rate limited target. recv is the receiver binding captured from
// the call that supplied args; it is forwarded unchanged.
type Func[A, R any] func(recv any, args ...A) (R, error)

// Action adapts a fire-and-forget function into a Func.
func Action[A any](f func(args ...A)) Func[A, struct{}] {
	if f == nil {
		return nil
	}
	return func(_ any, args ...A) (struct{}, error) {
		f(args...)
		return struct{}{}, nil
	}
}

// Returning adapts a function that cannot fail into a Func.
func Returning[A, R any](f func(args ...A) R) Func[A, R] {
	if f == nil {
		return nil
	}
	return func(_ any, args ...A) (R, error) {
		return f(args...), nil
	}
}

// Edge identifies what triggered an invocation.
type Edge string

const (
	// EdgeLeading is an invocation at the start of a burst or window.
	EdgeLeading Edge = "leading"

	// EdgeTrailing is an invocation at the end of a burst or window.
	EdgeTrailing Edge = "trailing"

	// EdgeMaxWait is a debounce invocation forced by the max-wait ceiling.
	EdgeMaxWait Edge = "max_wait"
)

// Detached reports whether invocations on this edge run from a timer callback,
// away from any caller.
func (e Edge) Detached() bool {
	return e != EdgeLeading
}

// Pending is the captured arguments and receiver of the most recent call that
// has not been delivered yet.
type Pending[A any] struct {
	recv    any
	args    []A
	at      time.Time
	present bool
}

// Store replaces the pending invocation. args is copied so later mutation of
// the caller's slice does not leak into the delivered arguments.
func (p *Pending[A]) Store(recv any, args []A, at time.Time) {
	p.recv = recv
	p.args = append([]A(nil), args...)
	p.at = at
	p.present = true
}

// Take consumes the pending invocation.
func (p *Pending[A]) Take() (recv any, args []A, ok bool) {
	if !p.present {
		return nil, nil, false
	}
	recv, args = p.recv, p.args
	p.Discard()
	return recv, args, true
}

// Discard drops the pending invocation and reports whether there was one.
func (p *Pending[A]) Discard() bool {
	had := p.present
	p.recv, p.args, p.at, p.present = nil, nil, time.Time{}, false
	return had
}

// Present reports whether a call is waiting to be delivered.
func (p *Pending[A]) Present() bool {
	return p.present
}

// At returns the time the pending call was made.
func (p *Pending[A]) At() time.Time {
	return p.at
}

// Recover runs fn and converts a panic into an error wrapping
// errors.ErrInvocationPanic, with the stack attached.
func Recover[A, R any](fn Func[A, R], recv any, args []A) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\nStack trace:\n%s", gferrors.ErrInvocationPanic, r, debug.Stack())
		}
	}()
	return fn(recv, args...)
}
