package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func noSleep(waits *[]time.Duration) Option {
	return withSleep(func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return ctx.Err()
	})
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(t.Context(), DefaultConfig(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	}, noSleep(nil))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	var waits []time.Duration
	got, err := Do(t.Context(), DefaultConfig(), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	}, noSleep(&waits), withRand(func() float64 { return 0 }))

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, waits)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(t.Context(), DefaultConfig(), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	}, noSleep(nil))

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableShortCircuits(t *testing.T) {
	errPermanent := errors.New("unauthorized")
	calls := 0
	var seenAttempt int

	_, err := Do(t.Context(), DefaultConfig(), func(context.Context) (int, error) {
		calls++
		return 0, errPermanent
	}, noSleep(nil), WithShouldRetry(func(err error, attempt int) bool {
		seenAttempt = attempt
		return !errors.Is(err, errPermanent)
	}))

	assert.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, seenAttempt)
}

func TestDo_OnBeforeRetryObservesEveryRetry(t *testing.T) {
	type call struct {
		attempt int
		wait    time.Duration
	}
	var observed []call

	cfg := Config{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}
	_, err := Do(t.Context(), cfg, func(context.Context) (int, error) {
		return 0, errTransient
	}, noSleep(nil), WithOnBeforeRetry(func(err error, attempt int, wait time.Duration) {
		assert.ErrorIs(t, err, errTransient)
		observed = append(observed, call{attempt, wait})
	}))

	require.Error(t, err)
	assert.Equal(t, []call{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
	}, observed)
}

func TestDo_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	calls := 0
	_, err := Do(ctx, DefaultConfig(), func(context.Context) (int, error) {
		calls++
		return 0, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0

	_, err := Do(ctx, Config{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	}, WithOnBeforeRetry(func(error, int, time.Duration) { cancel() }))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledDuringAttemptIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0

	_, err := Do(ctx, DefaultConfig(), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	}, noSleep(nil))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFunc_Retry(t *testing.T) {
	calls := 0
	f := Func[string](func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errTransient
		}
		return "done", nil
	})

	got, err := f.Retry(t.Context(), DefaultConfig(), noSleep(nil))
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 2, calls)
}

func TestDelay_Schedule(t *testing.T) {
	cfg := Config{BaseDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

	want := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		5 * time.Second,
		5 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, Delay(cfg, i+1), "attempt %d", i+1)
	}
	assert.Equal(t, 5*time.Second, Delay(cfg, 200))
}

func TestDelay_NoOverflowWithoutCap(t *testing.T) {
	tests := []struct {
		name string
		base time.Duration
	}{
		{name: "exactly half the range", base: 1 << 62},
		{name: "just below half the range", base: math.MaxInt64 / 2},
		{name: "one second", base: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{BaseDelay: tt.base}
			prev := Delay(cfg, 1)
			for attempt := 2; attempt <= 80; attempt++ {
				d := Delay(cfg, attempt)
				require.Positive(t, d, "attempt %d", attempt)
				require.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
				prev = d
			}
		})
	}

	assert.Equal(t, time.Duration(math.MaxInt64), Jittered(1<<62, 1, 1, func() float64 { return 0 }))
}

func TestJittered_Bounds(t *testing.T) {
	cfg := DefaultConfig()
	for attempt := 1; attempt <= 6; attempt++ {
		d := Delay(cfg, attempt)
		for range 200 {
			got := Jittered(d, cfg.JitterMin, cfg.JitterMax, rand.Float64)
			assert.GreaterOrEqual(t, got, d)
			assert.LessOrEqual(t, got, time.Duration(float64(d)*1.3))
		}
	}

	assert.Equal(t, time.Second, Jittered(time.Second, 0, 0, rand.Float64))
	assert.Equal(t, 1500*time.Millisecond, Jittered(time.Second, 0, 0.5, func() float64 { return 1 }))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MaxAttempts = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxDelay = time.Millisecond
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.JitterMin, bad.JitterMax = 0.5, 0.1
	assert.Error(t, bad.Validate())
}
