package retry

import (
	"math"
	"time"
)

// Delay returns the pre-jitter wait after the given 1-indexed attempt:
// min(MaxDelay, BaseDelay * 2^(attempt-1)).
func Delay(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		if cfg.MaxDelay > 0 && d >= cfg.MaxDelay {
			break
		}
		// stop doubling before the duration overflows
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}

// Jittered perturbs d by a factor of 1 + U[lo, hi], where rnd returns a
// value in [0, 1).
func Jittered(d time.Duration, lo, hi float64, rnd func() float64) time.Duration {
	if hi <= 0 && lo <= 0 {
		return d
	}
	factor := 1 + lo + (hi-lo)*rnd()
	jittered := float64(d) * factor
	if jittered >= math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(jittered)
}
