package throttle

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/settle/internal/testutil"
	gferrors "github.com/vnykmshr/settle/pkg/common/errors"
	"github.com/vnykmshr/settle/pkg/ratelimit/invocation"
)

const ms = time.Millisecond

func newTestThrottler(t *testing.T, cfg Config) (*Throttler[int, int], *testutil.ManualScheduler, *testutil.Recorder[int]) {
	t.Helper()

	s := testutil.NewManualScheduler(time.Time{})
	rec := testutil.NewRecorder[int](s)
	cfg.Scheduler = s

	th, err := NewWithConfig[int, int](rec.Fn, cfg)
	require.NoError(t, err)
	return th, s, rec
}

func TestNewWithConfigValidation(t *testing.T) {
	noop := invocation.Func[int, int](func(any, ...int) (int, error) { return 0, nil })

	tests := []struct {
		name    string
		fn      invocation.Func[int, int]
		cfg     Config
		wantErr bool
	}{
		{"default", noop, DefaultConfig(100 * ms), false},
		{"zero wait", noop, DefaultConfig(0), false},
		{"negative wait", noop, DefaultConfig(-time.Second), true},
		{"nil fn", nil, DefaultConfig(100 * ms), true},
		{"neither edge", noop, Config{Wait: 100 * ms}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, err := NewWithConfig(tt.fn, tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, th)
				assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, th)
		})
	}
}

func TestNewDefaultsToBothEdges(t *testing.T) {
	th, err := New[int, int](func(any, ...int) (int, error) { return 0, nil }, time.Second)
	require.NoError(t, err)
	assert.True(t, th.leading)
	assert.True(t, th.trailing)
}

// Calls at 0, 30, 60 with wait=100 invoke with [1] at 0 and [3] at 100.
func TestLeadingAndTrailingWindow(t *testing.T) {
	th, s, rec := newTestThrottler(t, DefaultConfig(100*ms))
	start := s.Now()

	res, err := th.Call(nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res)

	s.Advance(30 * ms)
	_, _ = th.Call(nil, 2)
	s.Advance(30 * ms)
	res, _ = th.Call(nil, 3)
	assert.Equal(t, 1, res, "returns the leading result until the trailing edge")

	s.Advance(time.Second)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []int{1}, calls[0].Args)
	assert.Equal(t, time.Duration(0), calls[0].At.Sub(start))
	assert.Equal(t, []int{3}, calls[1].Args)
	assert.Equal(t, 100*ms, calls[1].At.Sub(start))

	st := th.State()
	assert.False(t, st.TimerActive)
	assert.False(t, st.HasPending)
	assert.Equal(t, start.Add(100*ms), st.LastInvoke)
}

func TestSingleCallInvokesOnBothEdges(t *testing.T) {
	th, s, rec := newTestThrottler(t, DefaultConfig(100*ms))

	_, _ = th.Call(nil, 7)
	s.Advance(100 * ms)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []int{7}, calls[0].Args)
	assert.Equal(t, []int{7}, calls[1].Args)
}

func TestLeadingOnly(t *testing.T) {
	th, s, rec := newTestThrottler(t, Config{Wait: 100 * ms, Leading: true})
	start := s.Now()

	for i := 0; i < 35; i++ {
		_, _ = th.Call(nil, i)
		s.Advance(10 * ms)
	}
	s.Advance(time.Second)

	calls := rec.Calls()
	require.Len(t, calls, 4)
	for i, c := range calls {
		assert.Equal(t, time.Duration(i)*100*ms, c.At.Sub(start))
		assert.Equal(t, []int{i * 10}, c.Args)
	}
}

func TestTrailingOnly(t *testing.T) {
	th, s, rec := newTestThrottler(t, Config{Wait: 100 * ms, Trailing: true})
	start := s.Now()

	res, _ := th.Call(nil, 1)
	assert.Zero(t, res, "nothing has been invoked yet")
	s.Advance(30 * ms)
	_, _ = th.Call(nil, 2)
	s.Advance(30 * ms)
	_, _ = th.Call(nil, 3)
	s.Advance(time.Second)

	require.Equal(t, 1, rec.Count())
	assert.Equal(t, []int{3}, rec.Last().Args)
	assert.Equal(t, 100*ms, rec.Last().At.Sub(start))

	res, _ = th.Call(nil, 4)
	assert.Equal(t, 1, res)
}

func TestContinuousCallsKeepFiring(t *testing.T) {
	th, s, rec := newTestThrottler(t, Config{Wait: 100 * ms, Trailing: true})

	for i := 0; i < 100; i++ {
		_, _ = th.Call(nil, i)
		s.Advance(10 * ms)
	}

	assert.Equal(t, 10, rec.Count(), "one trailing invocation per window")
}

func TestFrequencyBound(t *testing.T) {
	wait := 100 * ms
	configs := map[string]Config{
		"leading":  {Wait: wait, Leading: true},
		"trailing": {Wait: wait, Trailing: true},
		"both":     DefaultConfig(wait),
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			th, s, rec := newTestThrottler(t, cfg)

			for i := 0; i < 500; i++ {
				_, _ = th.Call(nil, i)
				s.Advance(time.Duration(rng.Int63n(int64(60 * ms))))
			}
			s.Advance(time.Second)

			calls := rec.Calls()
			require.NotEmpty(t, calls)

			limit := 1
			if cfg.Leading && cfg.Trailing {
				// A trailing fire may land right after a leading one.
				limit = 2
			}
			for i := range calls {
				inWindow := 0
				for j := i; j < len(calls) && calls[j].At.Sub(calls[i].At) < wait; j++ {
					inWindow++
				}
				assert.LessOrEqual(t, inWindow, limit, "window starting at call %d", i)
			}
		})
	}
}

func TestNoCallsNoInvocations(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(10 * ms), DefaultConfig(0)} {
		_, s, rec := newTestThrottler(t, cfg)
		s.Advance(time.Hour)
		assert.Equal(t, 0, rec.Count())
	}
}

func TestNeitherEdgeDiscards(t *testing.T) {
	obs := &countingObserver{}
	th, s, rec := newTestThrottler(t, Config{Wait: 50 * ms, Observer: obs})

	_, _ = th.Call(nil, 1)
	_, _ = th.Call(nil, 2)
	s.Advance(time.Second)

	assert.Equal(t, 0, rec.Count())
	assert.Equal(t, 2, obs.called)
	assert.Equal(t, 1, obs.discarded)
	assert.False(t, th.State().HasPending)
}

func TestZeroWait(t *testing.T) {
	th, s, rec := newTestThrottler(t, Config{Trailing: true})

	_, _ = th.Call(nil, 1)
	assert.Equal(t, 0, rec.Count())
	s.Advance(0)
	assert.Equal(t, 1, rec.Count())
	assert.Equal(t, 0, s.Pending())
}

func TestBackwardClockOpensWindow(t *testing.T) {
	th, s, rec := newTestThrottler(t, Config{Wait: 100 * ms, Leading: true})
	start := s.Now()

	_, _ = th.Call(nil, 1)
	s.Set(start.Add(-time.Minute))
	_, _ = th.Call(nil, 2)

	require.Equal(t, 2, rec.Count())
	assert.Equal(t, []int{2}, rec.Last().Args)
}

func TestReceiverForwarded(t *testing.T) {
	th, s, rec := newTestThrottler(t, Config{Wait: 10 * ms, Trailing: true})

	type pane struct{ name string }
	p := &pane{"left"}

	_, _ = th.Call(p, 1)
	s.Advance(10 * ms)

	require.Equal(t, 1, rec.Count())
	assert.Same(t, p, rec.Last().Recv.(*pane))
}

func TestLeadingErrorReturnedFromCall(t *testing.T) {
	th, s, rec := newTestThrottler(t, Config{Wait: 10 * ms, Leading: true})

	_, _ = th.Call(nil, 1)
	s.Advance(10 * ms)

	boom := errors.New("boom")
	rec.FailWith(boom)
	res, err := th.Call(nil, 2)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, res, "failed invocation keeps the previous result")
}

func TestLeadingPanicPropagates(t *testing.T) {
	th, s, rec := newTestThrottler(t, DefaultConfig(10*ms))

	rec.PanicWith("kaboom")
	assert.PanicsWithValue(t, "kaboom", func() { _, _ = th.Call(nil, 1) })

	st := th.State()
	assert.True(t, st.TimerActive)
	assert.True(t, st.HasPending)

	rec.PanicWith(nil)
	s.Advance(10 * ms)
	assert.Equal(t, 2, rec.Count(), "trailing edge runs after the leading panic")
	assert.False(t, th.State().TimerActive)
}

func TestTrailingErrorGoesToHandler(t *testing.T) {
	var mu sync.Mutex
	var reported []error

	cfg := Config{Wait: 10 * ms, Trailing: true, Name: "scroll"}
	cfg.OnError = func(name string, edge invocation.Edge, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "scroll", name)
		assert.Equal(t, invocation.EdgeTrailing, edge)
		reported = append(reported, err)
	}
	th, s, rec := newTestThrottler(t, cfg)

	boom := errors.New("render failed")
	rec.FailWith(boom)
	_, err := th.Call(nil, 1)
	require.NoError(t, err)
	s.Advance(10 * ms)

	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], boom)
	assert.False(t, th.State().HasPending)
}

func TestTrailingPanicReportedAsUnhandled(t *testing.T) {
	var got error
	invocation.SetUnhandledHandler(func(_ string, _ invocation.Edge, err error) { got = err })
	defer invocation.SetUnhandledHandler(nil)

	th, s, rec := newTestThrottler(t, Config{Wait: 10 * ms, Trailing: true})
	rec.PanicWith("trailing panic")

	_, _ = th.Call(nil, 1)
	s.Advance(10 * ms)

	require.Error(t, got)
	assert.True(t, gferrors.IsPanic(got))
	assert.False(t, th.State().TimerActive)

	rec.PanicWith(nil)
	_, _ = th.Call(nil, 2)
	s.Advance(10 * ms)
	assert.Equal(t, 2, rec.Count())
}

func TestStaleTimerCallbackIgnored(t *testing.T) {
	th, s, rec := newTestThrottler(t, Config{Wait: 10 * ms, Trailing: true})

	_, _ = th.Call(nil, 1)
	th.mu.Lock()
	stale := th.gen
	th.mu.Unlock()
	s.Advance(10 * ms)

	_, _ = th.Call(nil, 2)
	th.expired(stale)
	assert.Equal(t, 1, rec.Count())
	assert.True(t, th.State().TimerActive)
}

type countingObserver struct {
	called    int
	discarded int
	invoked   map[invocation.Edge]int
}

func (o *countingObserver) Called()    { o.called++ }
func (o *countingObserver) Discarded() { o.discarded++ }
func (o *countingObserver) Invoked(edge invocation.Edge, _ time.Duration, _ error) {
	if o.invoked == nil {
		o.invoked = make(map[invocation.Edge]int)
	}
	o.invoked[edge]++
}

func TestObserverEdges(t *testing.T) {
	obs := &countingObserver{}
	th, s, _ := newTestThrottler(t, Config{Wait: 100 * ms, Leading: true, Trailing: true, Observer: obs})

	_, _ = th.Call(nil, 1)
	_, _ = th.Call(nil, 2)
	s.Advance(time.Second)

	assert.Equal(t, 2, obs.called)
	assert.Equal(t, 1, obs.invoked[invocation.EdgeLeading])
	assert.Equal(t, 1, obs.invoked[invocation.EdgeTrailing])
}

func TestConcurrentCallsSystemScheduler(t *testing.T) {
	var mu sync.Mutex
	count := 0
	fn := invocation.Action(func(...int) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	th, err := NewWithConfig(fn, Config{Wait: 50 * ms, Trailing: true})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = th.Call(nil, i)
			}
		}()
	}
	wg.Wait()

	testutil.Eventually(t, func() bool {
		return !th.State().TimerActive
	}, 2*time.Second, 10*ms)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, count, 1)
}
