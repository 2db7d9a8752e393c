package debounce

import (
	"sync"
	"time"

	"github.com/vnykmshr/settle/pkg/common/clock"
	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
	"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
)

// Debouncer delays invoking its target until Wait has passed without calls,
// optionally invoking on the leading edge of a burst and forcing an
// invocation every MaxWait under continuous calls.
//
// All methods are safe for concurrent use. The target runs while the
// Debouncer's lock is held, so it must not call back into the same Debouncer.
type Debouncer[A, R any] struct {
	fn       invocation.Func[A, R]
	wait     time.Duration
	maxWait  time.Duration
	leading  bool
	trailing bool
	name     string
	sched    clock.Scheduler
	observer invocation.Observer
	onError  invocation.ErrorHandler

	mu         sync.Mutex
	called     bool
	lastCall   time.Time
	lastInvoke time.Time
	result     R
	pending    invocation.Pending[A]
	waitTimer  clock.Timer
	waitGen    uint64
	maxTimer   clock.Timer
	maxGen     uint64
}

// State is a snapshot of a Debouncer's timing state.
type State struct {
	LastCall        time.Time
	LastInvoke      time.Time
	HasPending      bool
	WaitTimerActive bool
	MaxTimerActive  bool
}

// New creates a trailing-only Debouncer for fn.
func New[A, R any](fn invocation.Func[A, R], wait time.Duration) (*Debouncer[A, R], error) {
	return NewWithConfig(fn, DefaultConfig(wait))
}

// NewWithConfig creates a Debouncer for fn with the given configuration.
// Invalid timings are reported as *errors.ValidationError.
func NewWithConfig[A, R any](fn invocation.Func[A, R], config Config) (*Debouncer[A, R], error) {
	if fn == nil {
		return nil, gferrors.NewValidationError(module, "fn", nil, "cannot be nil").
			WithHint("provide the function to debounce")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Debouncer[A, R]{
		fn:       fn,
		wait:     config.Wait,
		maxWait:  config.MaxWait,
		leading:  config.Leading,
		trailing: config.Trailing,
		name:     config.Name,
		sched:    clock.OrSystem(config.Scheduler),
		observer: invocation.OrNop(config.Observer),
		onError:  config.OnError,
	}, nil
}

// Name returns the configured name.
func (d *Debouncer[A, R]) Name() string {
	return d.name
}

// Call records a call with the given receiver and arguments and returns the
// result of the most recent successful invocation, which may predate this
// call. The error is non-nil only when this call ran a leading invocation
// that failed.
func (d *Debouncer[A, R]) Call(recv any, args ...A) (R, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.observer.Called()

	now := d.sched.Now()
	invoking := d.shouldInvoke(now)

	d.pending.Store(recv, args, now)
	d.lastCall = now
	d.called = true

	if invoking {
		if d.waitTimer == nil {
			return d.leadingEdge(now)
		}
		if d.maxWait > 0 {
			d.startMaxTimer(d.maxWait)
		}
	}

	d.startWaitTimer(d.wait)
	return d.result, nil
}

// State returns a snapshot of the timing state.
func (d *Debouncer[A, R]) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return State{
		LastCall:        d.lastCall,
		LastInvoke:      d.lastInvoke,
		HasPending:      d.pending.Present(),
		WaitTimerActive: d.waitTimer != nil,
		MaxTimerActive:  d.maxTimer != nil,
	}
}

func (d *Debouncer[A, R]) shouldInvoke(now time.Time) bool {
	if !d.called {
		return true
	}

	sinceCall := now.Sub(d.lastCall)
	if sinceCall >= d.wait || sinceCall < 0 {
		return true
	}
	return d.maxWait > 0 && now.Sub(d.lastInvoke) >= d.maxWait
}

func (d *Debouncer[A, R]) remainingWait(now time.Time) time.Duration {
	remaining := d.wait - now.Sub(d.lastCall)
	if d.maxWait > 0 {
		if untilMax := d.maxWait - now.Sub(d.lastInvoke); untilMax < remaining {
			remaining = untilMax
		}
	}
	return remaining
}

// leadingEdge starts a burst. Timers are armed before the target runs so a
// panicking target leaves the state consistent.
func (d *Debouncer[A, R]) leadingEdge(now time.Time) (R, error) {
	d.lastInvoke = now
	d.startWaitTimer(d.wait)
	if d.maxWait > 0 {
		d.startMaxTimer(d.maxWait)
	}

	if !d.leading {
		return d.result, nil
	}

	recv, args, _ := d.pending.Take()
	start := time.Now()
	res, err := d.fn(recv, args...)
	d.observer.Invoked(invocation.EdgeLeading, time.Since(start), err)
	if err != nil {
		return d.result, err
	}
	d.result = res
	return res, nil
}

func (d *Debouncer[A, R]) trailingEdge(now time.Time) {
	d.stopWaitTimer()
	d.stopMaxTimer()

	if !d.trailing {
		if d.pending.Discard() {
			d.observer.Discarded()
		}
		return
	}

	if recv, args, ok := d.pending.Take(); ok {
		d.lastInvoke = now
		d.invokeDetached(invocation.EdgeTrailing, recv, args)
	}
}

func (d *Debouncer[A, R]) waitExpired(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.waitGen {
		return
	}
	d.waitTimer = nil

	now := d.sched.Now()
	if d.shouldInvoke(now) {
		d.trailingEdge(now)
		return
	}
	d.startWaitTimer(d.remainingWait(now))
}

func (d *Debouncer[A, R]) maxExpired(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.maxGen {
		return
	}
	d.maxTimer = nil

	now := d.sched.Now()
	if d.trailing {
		if recv, args, ok := d.pending.Take(); ok {
			d.lastInvoke = now
			d.invokeDetached(invocation.EdgeMaxWait, recv, args)
		}
	}

	// burst still in progress
	if d.waitTimer != nil {
		d.startMaxTimer(d.maxWait)
	}
}

// invokeDetached runs the target from a timer callback. Panics are recovered
// and, like returned errors, handed to the error handler.
func (d *Debouncer[A, R]) invokeDetached(edge invocation.Edge, recv any, args []A) {
	start := time.Now()
	res, err := invocation.Recover(d.fn, recv, args)
	d.observer.Invoked(edge, time.Since(start), err)
	if err != nil {
		d.onError.Report(d.name, edge, err)
		return
	}
	d.result = res
}

func (d *Debouncer[A, R]) startWaitTimer(delay time.Duration) {
	d.stopWaitTimer()
	gen := d.waitGen
	d.waitTimer = d.sched.AfterFunc(delay, func() { d.waitExpired(gen) })
}

// stopWaitTimer also invalidates a callback that already fired but has not
// acquired the lock yet.
func (d *Debouncer[A, R]) stopWaitTimer() {
	if d.waitTimer != nil {
		d.waitTimer.Stop()
		d.waitTimer = nil
	}
	d.waitGen++
}

func (d *Debouncer[A, R]) startMaxTimer(delay time.Duration) {
	d.stopMaxTimer()
	gen := d.maxGen
	d.maxTimer = d.sched.AfterFunc(delay, func() { d.maxExpired(gen) })
}

func (d *Debouncer[A, R]) stopMaxTimer() {
	if d.maxTimer != nil {
		d.maxTimer.Stop()
		d.maxTimer = nil
	}
	d.maxGen++
}
