package throttle

import (
	"time"

	"github.com/vnykmshr/settle/pkg/common/clock"
	"github.com/vnykmshr/settle/pkg/common/validation"
	"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
)

const module = "throttle"

// Config holds configuration options for creating a new Throttler.
type Config struct {
	// Wait is the window length. At most one leading invocation happens per
	// window.
	Wait time.Duration

	// Leading invokes the target on the first call of each window.
	Leading bool

	// Trailing invokes the target with the latest arguments when the window
	// timer fires.
	Trailing bool

	// Name labels metrics and failure reports.
	Name string

	// Scheduler provides time and timers. If nil, clock.System is used.
	Scheduler clock.Scheduler

	// Observer receives call and invocation events. If nil, they are dropped.
	Observer invocation.Observer

	// OnError receives failures of trailing invocations. If nil, they go to
	// invocation.ReportUnhandled.
	OnError invocation.ErrorHandler
}

// DefaultConfig returns a configuration that invokes on both edges.
func DefaultConfig(wait time.Duration) Config {
	return Config{
		Wait:     wait,
		Leading:  true,
		Trailing: true,
	}
}

// Validate checks the timing fields.
func (c Config) Validate() error {
	return validation.ValidateNonNegativeDuration(module, "wait", c.Wait)
}
