package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/vnykmshr/settle/pkg/common/clock"
)

// ManualScheduler implements clock.Scheduler with a virtual clock. Time only
// moves when Advance is called, and due callbacks run synchronously on the
// goroutine that calls Advance, in deadline order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	s    *ManualScheduler
	when time.Time
	seq  uint64
	f    func()
	done bool
}

// NewManualScheduler creates a ManualScheduler starting at the given time.
// If zero time is provided, uses a fixed epoch so tests are reproducible.
func NewManualScheduler(start time.Time) *ManualScheduler {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &ManualScheduler{now: start}
}

// Now returns the current virtual time.
func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc registers f to run once the virtual clock reaches now+d.
func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) clock.Timer {
	if d < 0 {
		d = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{s: m, when: m.now.Add(d), seq: m.seq, f: f}
	m.timers = append(m.timers, t)
	return t
}

// Stop cancels the timer if it has not fired yet.
func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	t.s.remove(t)
	return true
}

// Advance moves the clock forward by d, firing every callback that becomes due.
// Callbacks scheduled by other callbacks fire in the same call if they fall
// inside the window.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		if next.when.After(m.now) {
			m.now = next.when
		}
		next.done = true
		m.remove(next)
		m.mu.Unlock()

		next.f()
	}
}

// AdvanceTo moves the clock to t, firing due callbacks. It is a no-op if t is
// not after the current time.
func (m *ManualScheduler) AdvanceTo(t time.Time) {
	if d := t.Sub(m.Now()); d > 0 {
		m.Advance(d)
	}
}

// Set jumps the clock to t without firing anything, which allows simulating a
// clock that moves backward.
func (m *ManualScheduler) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Pending returns the number of callbacks that have not fired or been stopped.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// nextDue must be called with mu held.
func (m *ManualScheduler) nextDue(target time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].when.Equal(m.timers[j].when) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].when.Before(m.timers[j].when)
	})
	if m.timers[0].when.After(target) {
		return nil
	}
	return m.timers[0]
}

// remove must be called with mu held.
func (m *ManualScheduler) remove(t *manualTimer) {
	for i, x := range m.timers {
		if x == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// Invocation is one recorded call of a target function.
type Invocation[A any] struct {
	At   time.Time
	Recv any
	Args []A
}

// Recorder records target invocations against a clock. Fn matches the
// invocation.Func signature so it can be passed straight to a wrapper.
type Recorder[A any] struct {
	mu    sync.Mutex
	clock clock.Clock
	calls []Invocation[A]
	err   error
	panic interface{}
}

// NewRecorder creates a Recorder that timestamps invocations with c.
func NewRecorder[A any](c clock.Clock) *Recorder[A] {
	return &Recorder[A]{clock: c}
}

// FailWith makes every following invocation return err.
func (r *Recorder[A]) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// PanicWith makes every following invocation panic with v.
func (r *Recorder[A]) PanicWith(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panic = v
}

// Fn records the invocation and returns the number of invocations so far.
func (r *Recorder[A]) Fn(recv any, args ...A) (int, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Invocation[A]{At: r.clock.Now(), Recv: recv, Args: append([]A(nil), args...)})
	n, err, p := len(r.calls), r.err, r.panic
	r.mu.Unlock()

	if p != nil {
		panic(p)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Count returns the number of recorded invocations.
func (r *Recorder[A]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Calls returns a copy of the recorded invocations.
func (r *Recorder[A]) Calls() []Invocation[A] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invocation[A](nil), r.calls...)
}

// Last returns the most recent invocation. It panics if there is none.
func (r *Recorder[A]) Last() Invocation[A] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		panic("testutil: no invocations recorded")
	}
	return r.calls[len(r.calls)-1]
}
