package worker

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy управляет экспоненциальной задержкой повторов синхронизации.
// Нулевые поля заменяются безопасными значениями внутри NextDelay.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64 // доля случайного разброса задержки, 0..1
}

// NextDelay returns the wait before the given attempt (1-based). The delay
// grows by BackoffFactor per attempt and is clamped to MaxDelay; with Jitter
// set it gets spread so retries from several workers do not align.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := r.InitialDelay
	if base <= 0 {
		base = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := time.Duration(float64(base) * math.Pow(factor, float64(attempt-1)))
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}

	if r.Jitter > 0 {
		spread := float64(d) * math.Min(r.Jitter, 1)
		d += time.Duration(rand.Float64()*2*spread - spread)
		if d < base {
			d = base
		}
		if r.MaxDelay > 0 && d > r.MaxDelay {
			d = r.MaxDelay
		}
	}
	return d
}
