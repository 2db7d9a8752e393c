package throttle

import (
	"sync"
	"time"

	"github.com/vnykmshr/settle/pkg/common/clock"
	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
	"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
)

// Throttler invokes its target at most once per Wait window: on the first
// call of a window when Leading is set, and with the latest arguments when
// the window timer fires when Trailing is set.
//
// All methods are safe for concurrent use. The target runs while the
// Throttler's lock is held, so it must not call back into the same Throttler.
type Throttler[A, R any] struct {
	fn       invocation.Func[A, R]
	wait     time.Duration
	leading  bool
	trailing bool
	name     string
	sched    clock.Scheduler
	observer invocation.Observer
	onError  invocation.ErrorHandler

	mu         sync.Mutex
	invoked    bool
	lastInvoke time.Time
	result     R
	pending    invocation.Pending[A]
	timer      clock.Timer
	gen        uint64
}

// State is a snapshot of a Throttler's timing state.
type State struct {
	LastInvoke  time.Time
	HasPending  bool
	TimerActive bool
}

// New creates a Throttler for fn that invokes on both edges.
func New[A, R any](fn invocation.Func[A, R], wait time.Duration) (*Throttler[A, R], error) {
	return NewWithConfig(fn, DefaultConfig(wait))
}

// NewWithConfig creates a Throttler for fn with the given configuration.
func NewWithConfig[A, R any](fn invocation.Func[A, R], config Config) (*Throttler[A, R], error) {
	if fn == nil {
		return nil, gferrors.NewValidationError(module, "fn", nil, "cannot be nil").
			WithHint("provide the function to throttle")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Throttler[A, R]{
		fn:       fn,
		wait:     config.Wait,
		leading:  config.Leading,
		trailing: config.Trailing,
		name:     config.Name,
		sched:    clock.OrSystem(config.Scheduler),
		observer: invocation.OrNop(config.Observer),
		onError:  config.OnError,
	}, nil
}

// Name returns the configured name.
func (t *Throttler[A, R]) Name() string {
	return t.name
}

// Call records a call and returns the result of the most recent successful
// invocation. The error is non-nil only when this call ran a leading
// invocation that failed.
func (t *Throttler[A, R]) Call(recv any, args ...A) (R, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.observer.Called()

	now := t.sched.Now()
	if t.timer == nil {
		t.startTimer()
	}
	// Stored even when this call invokes below, so the trailing edge sees the
	// freshest arguments.
	t.pending.Store(recv, args, now)

	if t.leading && t.windowElapsed(now) {
		t.lastInvoke = now
		t.invoked = true

		start := time.Now()
		res, err := t.fn(recv, args...)
		t.observer.Invoked(invocation.EdgeLeading, time.Since(start), err)
		if err != nil {
			return t.result, err
		}
		t.result = res
	}

	return t.result, nil
}

// State returns a snapshot of the timing state.
func (t *Throttler[A, R]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return State{
		LastInvoke:  t.lastInvoke,
		HasPending:  t.pending.Present(),
		TimerActive: t.timer != nil,
	}
}

// windowElapsed reports whether a new window has started. A clock that moved
// backward starts one too.
func (t *Throttler[A, R]) windowElapsed(now time.Time) bool {
	if !t.invoked {
		return true
	}
	since := now.Sub(t.lastInvoke)
	return since >= t.wait || since < 0
}

func (t *Throttler[A, R]) expired(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return
	}
	t.timer = nil

	if !t.trailing {
		if t.pending.Discard() {
			t.observer.Discarded()
		}
		return
	}

	recv, args, ok := t.pending.Take()
	if !ok {
		return
	}
	t.lastInvoke = t.sched.Now()
	t.invoked = true

	start := time.Now()
	res, err := invocation.Recover(t.fn, recv, args)
	t.observer.Invoked(invocation.EdgeTrailing, time.Since(start), err)
	if err != nil {
		t.onError.Report(t.name, invocation.EdgeTrailing, err)
		return
	}
	t.result = res
}

// startTimer arms the window timer. Callers check that none is active.
func (t *Throttler[A, R]) startTimer() {
	t.gen++
	gen := t.gen
	t.timer = t.sched.AfterFunc(t.wait, func() { t.expired(gen) })
}
