// Package ratelimit provides a token bucket for per-channel flood control.
package ratelimit

import (
    "time"

    "golang.org/x/time/rate"
)

// TokenBucket refills at rate tokens per second up to capacity.
type TokenBucket struct {
    l   *rate.Limiter
    now func() time.Time
}

// New returns a full bucket. A capacity <= 0 defaults to one second of rate.
// A rate <= 0 returns nil; a nil bucket allows everything.
func New(ratePerSec float64, capacity int) *TokenBucket {
    if ratePerSec <= 0 {
        return nil
    }
    if capacity <= 0 {
        capacity = int(max(ratePerSec, 1))
    }
    return &TokenBucket{l: rate.NewLimiter(rate.Limit(ratePerSec), capacity), now: time.Now}
}

// Allow tries to consume n tokens; if not enough, returns duration to wait.
func (b *TokenBucket) Allow(n int) (ok bool, wait time.Duration) {
    if b == nil {
        return true, 0
    }
    now := b.now()
    if b.l.AllowN(now, n) {
        return true, 0
    }
    r := b.l.ReserveN(now, n)
    if !r.OK() {
        return false, rate.InfDuration
    }
    wait = r.DelayFrom(now)
    r.CancelAt(now)
    return false, wait
}
