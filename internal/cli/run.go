package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli"

	"github.com/vnykmshr/settle/pkg/config"
	"github.com/vnykmshr/settle/pkg/logger"
	"github.com/vnykmshr/settle/pkg/metrics"
	"github.com/vnykmshr/settle/pkg/ratelimit/debounce"
	"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
	"github.com/vnykmshr/settle/pkg/ratelimit/throttle"
	"github.com/vnykmshr/settle/pkg/scheduling/eventloop"
	"github.com/vnykmshr/settle/pkg/scheduling/scheduler"
	"github.com/vnykmshr/settle/pkg/sink/redispub"
)

const runDescription = `Each stdin line is one call. Calls and timer callbacks run on a single
event loop, and each invocation of the target prints "+<offset>  <line>".
After stdin closes, run waits for pending timers before exiting.

A policy comes either from flags or, with --policy, from the configuration
file; --leading and --trailing override either source.`

// settlePoll is how often run checks for pending timers after stdin closes.
const settlePoll = 5 * time.Millisecond

var runFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "mode, m",
		Usage: "policy mode: debounce or throttle",
		Value: config.ModeDebounce,
	},
	cli.DurationFlag{
		Name:  "wait, w",
		Usage: "quiet period (debounce) or window length (throttle)",
		Value: 200 * time.Millisecond,
	},
	cli.DurationFlag{
		Name:  "max-wait",
		Usage: "debounce only: force an invocation at least this often, 0 to disable",
	},
	cli.BoolFlag{
		Name:  "leading",
		Usage: "invoke on the leading edge (--leading=false to disable)",
	},
	cli.BoolFlag{
		Name:  "trailing",
		Usage: "invoke on the trailing edge (--trailing=false to disable)",
	},
	cli.StringFlag{
		Name:   "config, c",
		Usage:  "path to the YAML configuration file",
		EnvVar: "SETTLE_CONFIG",
	},
	cli.StringFlag{
		Name:  "policy, p",
		Usage: "name of a policy from the configuration file",
	},
	cli.DurationFlag{
		Name:  "every",
		Usage: "also emit a \"tick\" event at this interval while reading stdin",
	},
	cli.StringFlag{
		Name:  "metrics-listen",
		Usage: "serve Prometheus metrics on this address",
	},
	cli.StringFlag{
		Name:  "redis-addr",
		Usage: "publish every invocation to Redis at this address",
	},
	cli.StringFlag{
		Name:  "redis-channel",
		Usage: "Redis channel for published invocations",
	},
}

type runner struct {
	stdin   io.Reader
	version string
}

// wrapper is the part of a debouncer or throttler that run drives.
type wrapper interface {
	Call(recv any, args ...string) (struct{}, error)
	idle() bool
}

type debounced struct {
	*debounce.Debouncer[string, struct{}]
}

func (d debounced) idle() bool {
	s := d.State()
	return !s.WaitTimerActive && !s.MaxTimerActive
}

type throttled struct {
	*throttle.Throttler[string, struct{}]
}

func (t throttled) idle() bool {
	return !t.State().TimerActive
}

func (r *runner) run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return err
	}

	log, closer, err := r.setupLogger(ctx, cfg.Logging)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	policy, err := resolvePolicy(ctx, cfg)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var registry *metrics.Registry
	if listen := metricsListen(ctx, cfg); listen != "" {
		reg := prometheus.NewRegistry()
		registry = metrics.NewRegistry(reg)
		stop, err := serveMetrics(listen, cfg.Metrics.Path, reg, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	publish, closeRedis, err := redisSink(ctx, cfg)
	if err != nil {
		return err
	}
	if closeRedis != nil {
		defer closeRedis()
	}

	loop := eventloop.NewWithConfig(eventloop.Config{Name: policy.Name, Logger: log})
	defer func() {
		if err := loop.Shutdown(context.Background()); err != nil {
			log.Warn("event loop did not shut down", "error", err)
		}
	}()

	start := loop.Now()
	out := ctx.App.Writer
	var invocations atomic.Int64
	target := func(recv any, args ...string) (struct{}, error) {
		invocations.Add(1)
		fmt.Fprintf(out, "+%-8v  %s\n", loop.Now().Sub(start).Round(time.Millisecond), strings.Join(args, " "))
		if publish != nil {
			if _, err := publish(recv, args...); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	}

	onError := func(name string, edge invocation.Edge, err error) {
		log.Error("invocation failed", "wrapper", name, "edge", string(edge), "error", err)
	}

	w, err := buildWrapper(policy, target, loop, metrics.NewObserver(registry, policy.Mode, policy.Name), onError)
	if err != nil {
		return err
	}
	log.Debug("policy ready", "policy", policy.Name, "mode", policy.Mode, "wait", policy.Wait)

	call := func(line string) {
		if _, err := w.Call(runCtx, line); err != nil {
			onError(policy.Name, invocation.EdgeLeading, err)
		}
	}

	sched, err := scheduler.NewWithConfig(scheduler.Config{Metrics: registry, Logger: log})
	if err != nil {
		return err
	}
	if every := ctx.Duration("every"); every > 0 {
		if err := sched.Every("tick", every, func(time.Time) { _ = loop.Post(func() { call("tick") }) }); err != nil {
			return err
		}
	}

	events := 0
	scanner := bufio.NewScanner(r.stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if err := loop.Do(runCtx, func() { call(line) }); err != nil {
			return err
		}
		events++
	}
	<-sched.Stop()
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading events: %w", err)
	}

	if err := waitIdle(runCtx, loop, w); err != nil {
		return err
	}
	log.Info("settled", "policy", policy.Name, "events", events, "invocations", invocations.Load())
	return nil
}

func (r *runner) setupLogger(ctx *cli.Context, cfg logger.Config) (*slog.Logger, io.Closer, error) {
	if strings.EqualFold(cfg.Output, "file") {
		return logger.Setup(cfg, r.version)
	}
	w := ctx.App.ErrWriter
	if strings.EqualFold(cfg.Output, "stdout") {
		w = ctx.App.Writer
	}
	log, err := logger.New(cfg, w)
	if err != nil {
		return nil, nil, err
	}
	return log.With(slog.String("version", r.version)), nil, nil
}

// resolvePolicy builds the policy from --policy or from the mode flags.
func resolvePolicy(ctx *cli.Context, cfg *config.Config) (config.Policy, error) {
	var policy config.Policy
	if name := ctx.String("policy"); name != "" {
		p, err := cfg.Policy(name)
		if err != nil {
			return config.Policy{}, err
		}
		policy = p
	} else {
		policy = config.Policy{
			Name:    "cli",
			Mode:    ctx.String("mode"),
			Wait:    ctx.Duration("wait"),
			MaxWait: ctx.Duration("max-wait"),
		}
	}

	if ctx.IsSet("leading") {
		leading := ctx.Bool("leading")
		policy.Leading = &leading
	}
	if ctx.IsSet("trailing") {
		trailing := ctx.Bool("trailing")
		policy.Trailing = &trailing
	}

	if err := policy.Validate(); err != nil {
		return config.Policy{}, err
	}
	return policy, nil
}

func buildWrapper(policy config.Policy, fn invocation.Func[string, struct{}], loop *eventloop.Loop,
	observer invocation.Observer, onError invocation.ErrorHandler) (wrapper, error) {
	if policy.Mode == config.ModeThrottle {
		cfg := policy.ThrottleConfig()
		cfg.Scheduler = loop
		cfg.Observer = observer
		cfg.OnError = onError
		t, err := throttle.NewWithConfig(fn, cfg)
		if err != nil {
			return nil, err
		}
		return throttled{t}, nil
	}

	cfg := policy.DebounceConfig()
	cfg.Scheduler = loop
	cfg.Observer = observer
	cfg.OnError = onError
	d, err := debounce.NewWithConfig(fn, cfg)
	if err != nil {
		return nil, err
	}
	return debounced{d}, nil
}

func waitIdle(ctx context.Context, loop *eventloop.Loop, w wrapper) error {
	for {
		var idle bool
		if err := loop.Do(ctx, func() { idle = w.idle() }); err != nil {
			return err
		}
		if idle {
			return nil
		}
		time.Sleep(settlePoll)
	}
}

func metricsListen(ctx *cli.Context, cfg *config.Config) string {
	if listen := ctx.String("metrics-listen"); listen != "" {
		return listen
	}
	if cfg.Metrics.Enabled {
		return cfg.Metrics.Listen
	}
	return ""
}

// serveMetrics starts the Prometheus endpoint and returns a function that
// shuts it down.
func serveMetrics(listen, path string, reg *prometheus.Registry, log *slog.Logger) (func(), error) {
	if path == "" {
		path = "/metrics"
	}
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	log.Info("serving metrics", "addr", ln.Addr().String(), "path", path)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-done
	}, nil
}

// redisSink returns the publish target and a closer when Redis is configured.
func redisSink(ctx *cli.Context, cfg *config.Config) (invocation.Func[string, int64], func(), error) {
	addr := cfg.Redis.Addr
	if a := ctx.String("redis-addr"); a != "" {
		addr = a
	}
	if addr == "" {
		return nil, nil, nil
	}
	channel := cfg.Redis.Channel
	if c := ctx.String("redis-channel"); c != "" {
		channel = c
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.Redis.DB})
	publish, err := redispub.New(rdb, channel)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return publish, func() { _ = rdb.Close() }, nil
}
