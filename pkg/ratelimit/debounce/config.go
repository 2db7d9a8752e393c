package debounce

import (
	"time"

	"github.com/vnykmshr/settle/pkg/common/clock"
	"github.com/vnykmshr/settle/pkg/common/validation"
	"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
)

const module = "debounce"

// Config holds configuration options for creating a new Debouncer.
type Config struct {
	// Wait is the quiet period that must pass without calls before the
	// trailing invocation.
	Wait time.Duration

	// Leading invokes the target on the first call of a burst.
	Leading bool

	// Trailing invokes the target with the latest arguments once the burst
	// is quiet for Wait.
	Trailing bool

	// MaxWait bounds how long invocation can be deferred under continuous
	// calls. Zero disables the ceiling; otherwise it must be at least Wait.
	MaxWait time.Duration

	// Name labels metrics and failure reports.
	Name string

	// Scheduler provides time and timers. If nil, clock.System is used.
	Scheduler clock.Scheduler

	// Observer receives call and invocation events. If nil, they are dropped.
	Observer invocation.Observer

	// OnError receives failures of trailing and max-wait invocations. If nil,
	// they go to invocation.ReportUnhandled.
	OnError invocation.ErrorHandler
}

// DefaultConfig returns the trailing-only configuration for the given wait.
func DefaultConfig(wait time.Duration) Config {
	return Config{
		Wait:     wait,
		Trailing: true,
	}
}

// Validate checks the timing fields.
func (c Config) Validate() error {
	if err := validation.ValidateNonNegativeDuration(module, "wait", c.Wait); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration(module, "max_wait", c.MaxWait); err != nil {
		return err
	}
	if c.MaxWait > 0 {
		return validation.ValidateAtLeast(module, "max_wait", c.MaxWait, "wait", c.Wait)
	}
	return nil
}
