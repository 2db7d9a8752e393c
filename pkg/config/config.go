// Package config loads settle configuration from YAML and the environment:
// logging, metrics, the optional Redis sink, and named wrapper policies.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
	"github.com/vnykmshr/settle/pkg/common/validation"
	"github.com/vnykmshr/settle/pkg/logger"
	"github.com/vnykmshr/settle/pkg/ratelimit/debounce"
	"github.com/vnykmshr/settle/pkg/ratelimit/throttle"
)

const module = "config"

// Policy modes.
const (
	ModeDebounce = "debounce"
	ModeThrottle = "throttle"
)

// Config is the top-level settle configuration.
type Config struct {
	Logging  logger.Config     `yaml:"logging"`
	Metrics  MetricsConfig     `yaml:"metrics"`
	Redis    RedisConfig       `yaml:"redis"`
	Policies map[string]Policy `yaml:"policies"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// RedisConfig configures the publish sink. An empty Addr disables it.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	DB      int    `yaml:"db"`
	Channel string `yaml:"channel"`
}

// Policy is a named wrapper configuration. Leading and Trailing are optional
// so each mode can apply its own defaults.
type Policy struct {
	Name     string        `yaml:"-"`
	Mode     string        `yaml:"mode"`
	Wait     time.Duration `yaml:"wait"`
	MaxWait  time.Duration `yaml:"max_wait"`
	Leading  *bool         `yaml:"leading"`
	Trailing *bool         `yaml:"trailing"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Listen: ":9090",
			Path:   "/metrics",
		},
		Redis: RedisConfig{
			Channel: "settle:invocations",
		},
		Policies: map[string]Policy{},
	}
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(config, data); err != nil {
			return nil, err
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Parse decodes YAML on top of the defaults and validates the result. The
// environment is not consulted.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := decode(config, data); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func decode(config *Config, data []byte) error {
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	for name, p := range config.Policies {
		p.Name = name
		config.Policies[name] = p
	}
	return nil
}

// loadFromEnvironment overrides settings from SETTLE_* variables.
func loadFromEnvironment(config *Config) {
	if level := os.Getenv("SETTLE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("SETTLE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("SETTLE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}
	if enabled := os.Getenv("SETTLE_METRICS_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Metrics.Enabled = b
		}
	}
	if listen := os.Getenv("SETTLE_METRICS_LISTEN"); listen != "" {
		config.Metrics.Listen = listen
	}
	if addr := os.Getenv("SETTLE_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
	}
}

// Validate checks every section and every policy.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Metrics.Enabled {
		if err := validation.ValidateNotEmpty(module, "metrics.listen", c.Metrics.Listen); err != nil {
			return err
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return gferrors.NewValidationError(module, "metrics.path", c.Metrics.Path, "must start with /")
		}
	}
	if c.Redis.Addr != "" {
		if err := validation.ValidateNotEmpty(module, "redis.channel", c.Redis.Channel); err != nil {
			return err
		}
	}
	for _, name := range c.PolicyNames() {
		if err := c.Policies[name].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PolicyNames returns the policy names in sorted order.
func (c *Config) PolicyNames() []string {
	names := make([]string, 0, len(c.Policies))
	for name := range c.Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Policy looks up a policy by name.
func (c *Config) Policy(name string) (Policy, error) {
	p, ok := c.Policies[name]
	if !ok {
		return Policy{}, gferrors.NewValidationError(module, "policy", name, "not defined").
			WithHint("expected one of: " + strings.Join(c.PolicyNames(), " "))
	}
	return p, nil
}

// Validate checks the mode and the timings for that mode.
func (p Policy) Validate() error {
	field := "policies." + p.Name
	if err := validation.ValidateOneOf(module, field+".mode", p.Mode, ModeDebounce, ModeThrottle); err != nil {
		return err
	}

	var err error
	switch p.Mode {
	case ModeThrottle:
		if p.MaxWait != 0 {
			return gferrors.NewValidationError(module, field+".max_wait", p.MaxWait, "only applies to debounce")
		}
		err = p.ThrottleConfig().Validate()
	default:
		err = p.DebounceConfig().Validate()
	}
	if err != nil {
		return fmt.Errorf("policy %q: %w", p.Name, err)
	}
	return nil
}

// DebounceConfig converts the policy to a debounce configuration. Leading
// defaults to false and Trailing to true.
func (p Policy) DebounceConfig() debounce.Config {
	cfg := debounce.DefaultConfig(p.Wait)
	cfg.MaxWait = p.MaxWait
	cfg.Name = p.Name
	if p.Leading != nil {
		cfg.Leading = *p.Leading
	}
	if p.Trailing != nil {
		cfg.Trailing = *p.Trailing
	}
	return cfg
}

// ThrottleConfig converts the policy to a throttle configuration. Leading and
// Trailing both default to true.
func (p Policy) ThrottleConfig() throttle.Config {
	cfg := throttle.DefaultConfig(p.Wait)
	cfg.Name = p.Name
	if p.Leading != nil {
		cfg.Leading = *p.Leading
	}
	if p.Trailing != nil {
		cfg.Trailing = *p.Trailing
	}
	return cfg
}
