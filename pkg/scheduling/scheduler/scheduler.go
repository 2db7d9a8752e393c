package scheduler

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vnykmshr/settle/pkg/common/clock"
	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
	"github.com/vnykmshr/settle/pkg/common/validation"
	"github.com/vnykmshr/settle/pkg/metrics"
)

const (
	module = "scheduler"

	maxIDLength     = 255
	defaultMaxTasks = 10000
)

// Job is the work run for a scheduled task. at is the scheduler's clock
// reading when the run started.
type Job func(at time.Time)

// Task describes a scheduled task.
type Task struct {
	ID       string
	NextRun  time.Time
	Interval time.Duration // Zero for cron and one-time tasks
	Cron     string        // Empty for interval and one-time tasks
	Runs     int64
	Created  time.Time
}

// Config holds scheduler configuration.
type Config struct {
	// Scheduler supplies the clock and timers. If nil, clock.System is used.
	Scheduler clock.Scheduler

	// Location is the time zone cron expressions are evaluated in.
	// If nil, time.Local is used.
	Location *time.Location

	// MaxTasks limits the number of scheduled tasks (default: 10000).
	MaxTasks int

	// Metrics records task runs and panics. If nil, nothing is recorded.
	Metrics *metrics.Registry

	// Logger receives task panics. If nil, slog.Default() is used.
	Logger *slog.Logger
}

type scheduledTask struct {
	id       string
	job      Job
	nextRun  time.Time
	interval time.Duration
	cronExpr string
	schedule cron.Schedule
	runs     int64
	created  time.Time

	timer clock.Timer
	gen   uint64
}

// Scheduler runs jobs on fixed intervals, cron schedules, or once after a
// delay. Each task has its own timer from the configured clock.Scheduler, so
// tasks can be driven by a virtual clock in tests.
type Scheduler struct {
	sched    clock.Scheduler
	location *time.Location
	maxTasks int
	metrics  *metrics.Registry
	logger   *slog.Logger
	parser   cron.Parser

	mu      sync.Mutex
	tasks   map[string]*scheduledTask
	stopped bool
	running sync.WaitGroup
}

// New creates a scheduler with default configuration.
func New() *Scheduler {
	s, _ := NewWithConfig(Config{})
	return s
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) (*Scheduler, error) {
	if cfg.MaxTasks < 0 {
		return nil, gferrors.NewValidationError(module, "max_tasks", cfg.MaxTasks, "cannot be negative").
			WithHint("use 0 for the default limit")
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	maxTasks := cfg.MaxTasks
	if maxTasks == 0 {
		maxTasks = defaultMaxTasks
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		sched:    clock.OrSystem(cfg.Scheduler),
		location: location,
		maxTasks: maxTasks,
		metrics:  cfg.Metrics,
		logger:   logger,
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
			cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		tasks: make(map[string]*scheduledTask),
	}, nil
}

// Every runs job every interval, starting one interval from now.
func (s *Scheduler) Every(id string, interval time.Duration, job Job) error {
	if err := validation.ValidatePositiveDuration(module, "interval", interval); err != nil {
		return err
	}
	return s.add(id, job, func(now time.Time) *scheduledTask {
		return &scheduledTask{nextRun: now.Add(interval), interval: interval}
	})
}

// After runs job once, delay from now.
func (s *Scheduler) After(id string, delay time.Duration, job Job) error {
	if err := validation.ValidateNonNegativeDuration(module, "delay", delay); err != nil {
		return err
	}
	return s.add(id, job, func(now time.Time) *scheduledTask {
		return &scheduledTask{nextRun: now.Add(delay)}
	})
}

// Cron runs job on a cron schedule. Both five-field expressions and
// six-field expressions with leading seconds are accepted, as are
// descriptors such as "@hourly" and "@every 30s".
func (s *Scheduler) Cron(id string, expr string, job Job) error {
	if err := validation.ValidateNotEmpty(module, "cron", expr); err != nil {
		return err
	}
	schedule, err := s.parser.Parse(expr)
	if err != nil {
		return gferrors.NewValidationError(module, "cron", expr, err.Error()).
			WithHint(`use "min hour dom month dow", an optional leading seconds field, or a descriptor like @hourly`)
	}
	if schedule.Next(s.sched.Now().In(s.location)).IsZero() {
		return gferrors.NewValidationError(module, "cron", expr, "never fires")
	}

	return s.add(id, job, func(now time.Time) *scheduledTask {
		return &scheduledTask{
			nextRun:  schedule.Next(now.In(s.location)),
			cronExpr: expr,
			schedule: schedule,
		}
	})
}

func (s *Scheduler) add(id string, job Job, build func(now time.Time) *scheduledTask) error {
	if err := validation.ValidateNotEmpty(module, "id", id); err != nil {
		return err
	}
	if len(id) > maxIDLength {
		return gferrors.NewValidationError(module, "id", id, fmt.Sprintf("too long (max %d characters)", maxIDLength))
	}
	if job == nil {
		return gferrors.NewValidationError(module, "job", nil, "cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return gferrors.ErrClosed
	}
	if _, exists := s.tasks[id]; exists {
		return fmt.Errorf("task with ID %q already exists, use a different ID or cancel the existing task first", id)
	}
	if len(s.tasks) >= s.maxTasks {
		return fmt.Errorf("cannot schedule task: maximum number of tasks (%d) reached", s.maxTasks)
	}

	now := s.sched.Now()
	task := build(now)
	task.id = id
	task.job = job
	task.created = now
	s.tasks[id] = task
	s.arm(task, now)

	return nil
}

// Cancel removes a task. It reports whether the task existed. A run that
// already started is not interrupted.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return false
	}
	s.disarm(task)
	delete(s.tasks, id)
	return true
}

// CancelAll removes every task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, task := range s.tasks {
		s.disarm(task)
		delete(s.tasks, id)
	}
}

// Next returns the next run time of a task.
func (s *Scheduler) Next(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[id]
	if !exists {
		return time.Time{}, false
	}
	return task.nextRun, true
}

// List returns all tasks ordered by next run time.
func (s *Scheduler) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, Task{
			ID:       t.id,
			NextRun:  t.nextRun,
			Interval: t.interval,
			Cron:     t.cronExpr,
			Runs:     t.runs,
			Created:  t.created,
		})
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].NextRun.Equal(tasks[j].NextRun) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].NextRun.Before(tasks[j].NextRun)
	})

	return tasks
}

// Stop cancels every task, refuses new ones and returns a channel that is
// closed once runs in progress have finished.
func (s *Scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	s.stopped = true
	for id, task := range s.tasks {
		s.disarm(task)
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.running.Wait()
	}()
	return stopped
}

// arm must be called with mu held.
func (s *Scheduler) arm(task *scheduledTask, now time.Time) {
	task.gen++
	gen := task.gen
	task.timer = s.sched.AfterFunc(task.nextRun.Sub(now), func() { s.fire(task, gen) })
}

// disarm must be called with mu held.
func (s *Scheduler) disarm(task *scheduledTask) {
	if task.timer != nil {
		task.timer.Stop()
		task.timer = nil
	}
	task.gen++
}

func (s *Scheduler) fire(task *scheduledTask, gen uint64) {
	s.mu.Lock()
	if current, ok := s.tasks[task.id]; !ok || current != task || task.gen != gen {
		s.mu.Unlock()
		return
	}

	now := s.sched.Now()
	task.runs++
	task.timer = nil

	switch {
	case task.interval > 0:
		// Keep the original cadence unless runs fell behind.
		next := task.nextRun.Add(task.interval)
		if !next.After(now) {
			next = now.Add(task.interval)
		}
		task.nextRun = next
		s.arm(task, now)
	case task.schedule != nil:
		task.nextRun = task.schedule.Next(now.In(s.location))
		if task.nextRun.IsZero() {
			delete(s.tasks, task.id)
			break
		}
		s.arm(task, now)
	default:
		delete(s.tasks, task.id)
	}

	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	s.run(task.id, task.job, now)
}

// run executes a job outside the lock so it may schedule or cancel tasks.
func (s *Scheduler) run(id string, job Job, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			if s.metrics != nil {
				s.metrics.TaskPanics.WithLabelValues(id).Inc()
			}
			s.logger.Error("scheduled task panicked",
				"task", id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	if s.metrics != nil {
		s.metrics.TaskRuns.WithLabelValues(id).Inc()
	}
	job(at)
}
