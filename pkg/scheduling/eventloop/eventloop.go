package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/settle/pkg/common/clock"
	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
)

const module = "eventloop"

// Task is a unit of work run on the loop goroutine.
type Task func()

// Config holds configuration options for creating a Loop.
type Config struct {
	// Name labels log records.
	Name string

	// Scheduler supplies the clock and the underlying timers whose callbacks
	// are forwarded onto the loop. If nil, clock.System is used.
	Scheduler clock.Scheduler

	// Logger receives panic reports. If nil, slog.Default() is used.
	Logger *slog.Logger

	// PanicHandler is called on the loop goroutine when a task panics.
	// If nil, the panic is logged with its stack trace.
	PanicHandler func(recovered interface{})
}

// Loop runs tasks one at a time, in submission order, on a single goroutine.
// It implements clock.Scheduler: timer callbacks registered with AfterFunc
// are queued onto the loop instead of running on their own goroutine, so
// everything that touches a wrapper through the loop is serialized.
type Loop struct {
	config Config
	sched  clock.Scheduler
	logger *slog.Logger

	mu     sync.Mutex
	queue  []Task
	closed bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	executed atomic.Int64
}

// New starts a Loop with the default configuration.
func New() *Loop {
	return NewWithConfig(Config{})
}

// NewWithConfig starts a Loop with the given configuration.
func NewWithConfig(config Config) *Loop {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Loop{
		config: config,
		sched:  clock.OrSystem(config.Scheduler),
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Post queues task for execution and returns without waiting. The queue is
// unbounded, so Post never blocks, including when called from a task.
func (l *Loop) Post(task Task) error {
	if task == nil {
		return gferrors.NewValidationError(module, "task", nil, "cannot be nil")
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return gferrors.ErrClosed
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	l.signal()
	return nil
}

// Do runs task on the loop and waits for it to finish. A panic in task is
// returned as an error wrapping errors.ErrInvocationPanic. Do must not be
// called from a task running on the same loop.
func (l *Loop) Do(ctx context.Context, task Task) error {
	if task == nil {
		return gferrors.NewValidationError(module, "task", nil, "cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	finished := make(chan error, 1)
	err := l.Post(func() {
		defer func() {
			if r := recover(); r != nil {
				finished <- fmt.Errorf("%w: %v\nStack trace:\n%s", gferrors.ErrInvocationPanic, r, debug.Stack())
			}
		}()
		task()
		finished <- nil
	})
	if err != nil {
		return err
	}

	select {
	case err := <-finished:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for loop task: %w", ctx.Err())
	}
}

// Now implements clock.Clock.
func (l *Loop) Now() time.Time {
	return l.sched.Now()
}

// AfterFunc implements clock.Scheduler. f runs on the loop goroutine after d.
// Callbacks that come due after Shutdown are dropped and logged at warn level.
func (l *Loop) AfterFunc(d time.Duration, f func()) clock.Timer {
	t := &loopTimer{}
	t.inner = l.sched.AfterFunc(d, func() {
		if !t.state.CompareAndSwap(timerArmed, timerQueued) {
			return
		}
		err := l.Post(func() {
			if t.state.CompareAndSwap(timerQueued, timerRan) {
				f()
			}
		})
		if err != nil {
			l.logger.Warn("event loop timer dropped",
				"loop", l.config.Name,
				"delay", d,
				"error", err)
		}
	})
	return t
}

// Len returns the number of tasks waiting to run.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Executed returns the number of tasks the loop has run.
func (l *Loop) Executed() int64 {
	return l.executed.Load()
}

// Shutdown stops accepting tasks, lets already queued tasks finish and waits
// for the loop goroutine to exit or ctx to be done.
func (l *Loop) Shutdown(ctx context.Context) error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		l.signal()
	})

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return gferrors.NewOperationError(module, "Shutdown", ctx.Err()).
			WithContext(fmt.Sprintf("%d tasks still queued", l.Len()))
	}
}

// Done returns a channel that is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// run is the loop goroutine.
func (l *Loop) run() {
	defer close(l.done)

	for {
		task, ok := l.next()
		if !ok {
			return
		}
		l.execute(task)
	}
}

// next blocks until a task is available. It reports false once the loop is
// closed and drained.
func (l *Loop) next() (Task, bool) {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			task := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return task, true
		}
		closed := l.closed
		l.mu.Unlock()

		if closed {
			return nil, false
		}
		<-l.wake
	}
}

func (l *Loop) execute(task Task) {
	defer func() {
		l.executed.Add(1)
		if r := recover(); r != nil {
			if l.config.PanicHandler != nil {
				l.config.PanicHandler(r)
				return
			}
			l.logger.Error("event loop task panicked",
				"loop", l.config.Name,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	task()
}

const (
	timerArmed int32 = iota
	timerQueued
	timerRan
	timerStopped
)

type loopTimer struct {
	inner clock.Timer
	state atomic.Int32
}

// Stop prevents the callback from running, including when it has already
// been queued on the loop but has not started.
func (t *loopTimer) Stop() bool {
	for {
		s := t.state.Load()
		if s == timerRan || s == timerStopped {
			return false
		}
		if t.state.CompareAndSwap(s, timerStopped) {
			if s == timerArmed {
				t.inner.Stop()
			}
			return true
		}
	}
}
