package async

import (
	"math"
	"time"
)

// BackoffConfig describes an exponential backoff with a ceiling and no jitter.
type BackoffConfig struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// BackoffExponential returns the delay to wait before retry number attempts,
// starting at Base for the first retry.
func BackoffExponential(cfg BackoffConfig) func(attempts int) time.Duration {
	base := cfg.Base
	max := cfg.Max
	factor := cfg.Factor
	if factor < 1 {
		factor = 1
	}

	return func(attempts int) time.Duration {
		if attempts <= 0 || base <= 0 {
			return 0
		}
		delay := float64(base) * math.Pow(factor, float64(attempts-1))
		if max > 0 && delay > float64(max) {
			return max
		}
		if delay > float64(math.MaxInt64) {
			return time.Duration(math.MaxInt64)
		}
		return time.Duration(delay)
	}
}
