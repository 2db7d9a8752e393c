// Package clock abstracts time reads and delayed callbacks so that the
// invocation engines can be driven by a virtual clock in tests.
package clock

import "time"

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// Timer is a handle to a scheduled callback. Stop cancels the callback and
// reports whether it was still pending.
type Timer interface {
	Stop() bool
}

// Scheduler reads the time and schedules callbacks after a delay.
type Scheduler interface {
	Clock

	// AfterFunc arranges for f to run once d has elapsed. Negative delays
	// are treated as zero.
	AfterFunc(d time.Duration, f func()) Timer
}

// System implements Scheduler with the runtime timer facility. Callbacks run on
// their own goroutine, as with time.AfterFunc.
type System struct{}

// Now returns the current system time, including its monotonic reading.
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f with time.AfterFunc.
func (System) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, f)
}

// OrSystem returns s, or System when s is nil.
func OrSystem(s Scheduler) Scheduler {
	if s == nil {
		return System{}
	}
	return s
}
