// Package redispub adapts a Redis PUBLISH into a target function for the
// rate-limited wrappers, so a burst of change events can be coalesced into a
// single cache-invalidation message.
package redispub

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
	"github.com/vnykmshr/settle/pkg/common/validation"
	"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
)

const module = "redispub"

// Publisher is the subset of redis.UniversalClient used to publish.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Config holds configuration for a publishing target.
type Config struct {
	// Client publishes the messages. Any redis.UniversalClient works.
	Client Publisher

	// Channel is the Redis channel to publish on.
	Channel string

	// Separator joins multiple call arguments into one message (default "\n").
	Separator string

	// Timeout bounds each PUBLISH (default 500ms).
	Timeout time.Duration
}

// DefaultConfig returns a configuration for client and channel.
func DefaultConfig(client Publisher, channel string) Config {
	return Config{
		Client:    client,
		Channel:   channel,
		Separator: "\n",
		Timeout:   500 * time.Millisecond,
	}
}

// New returns a target that publishes its arguments on channel.
func New(client Publisher, channel string) (invocation.Func[string, int64], error) {
	return NewWithConfig(DefaultConfig(client, channel))
}

// NewWithConfig returns a target that publishes its arguments, joined by
// Separator, and returns the number of subscribers that received the message.
//
// If the receiver passed through the wrapper is a context.Context, it is used
// as the parent of the publish timeout.
func NewWithConfig(config Config) (invocation.Func[string, int64], error) {
	if err := validation.ValidateNotNil(module, "client", config.Client); err != nil {
		return nil, err
	}
	if err := validation.ValidateNotEmpty(module, "channel", config.Channel); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration(module, "timeout", config.Timeout); err != nil {
		return nil, err
	}
	if config.Separator == "" {
		config.Separator = "\n"
	}

	return func(recv any, args ...string) (int64, error) {
		parent, ok := recv.(context.Context)
		if !ok || parent == nil {
			parent = context.Background()
		}
		ctx := parent
		if config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(parent, config.Timeout)
			defer cancel()
		}

		message := strings.Join(args, config.Separator)
		receivers, err := config.Client.Publish(ctx, config.Channel, message).Result()
		if err != nil {
			return 0, gferrors.NewOperationError(module, "Publish", err).
				WithContext(fmt.Sprintf("channel=%s", config.Channel))
		}
		return receivers, nil
	}, nil
}
