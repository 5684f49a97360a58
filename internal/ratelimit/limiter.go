// Package ratelimit provides the global blocking token bucket that gates
// outbound forge API calls.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Limiter is a token bucket shared across all orchestrators and sessions.
// Acquire blocks until tokens are available rather than rejecting, and
// paces the caller after each acquisition to smooth bursts across the
// window. A fixed reserve of tokens is never handed out, so the usable
// capacity is max-reserve even though Status reports the full max.
type Limiter struct {
	mu         sync.Mutex
	available  float64
	max        int
	reserve    int
	windowSecs int
	lastRefill time.Time
	now        func() time.Time
}

// New creates a Limiter with maxRequests tokens per windowSeconds, always
// holding reserve tokens back from the usable pool.
func New(maxRequests, windowSeconds, reserve int) *Limiter {
	usable := maxRequests - reserve
	if usable < 0 {
		usable = 0
	}
	return &Limiter{
		available:  float64(usable),
		max:        maxRequests,
		reserve:    reserve,
		windowSecs: windowSeconds,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// Status is the public view of the limiter's current state.
type Status struct {
	Available          int     `json:"available"`
	Max                int     `json:"max"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// Acquire blocks until n tokens are available, decrements the bucket, then
// sleeps for the per-request pacing delay window_seconds*1000/max_requests
// milliseconds. It returns only on success or if ctx is cancelled first.
func (l *Limiter) Acquire(ctx context.Context, n int) error {
	for {
		wait, ok := l.tryAcquire(n)
		if ok {
			pace := time.Duration(float64(l.windowSecs) * 1000 / float64(l.max)) * time.Millisecond
			select {
			case <-time.After(pace):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// usableCapacity is the maximum number of tokens the bucket ever holds.
func (l *Limiter) usableCapacity() int {
	c := l.max - l.reserve
	if c < 0 {
		return 0
	}
	return c
}

// tryAcquire refills the bucket, then either decrements by n and returns
// (0, true) or returns the wait duration until n tokens will be available.
func (l *Limiter) tryAcquire(n int) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()

	if l.available >= float64(n) {
		l.available -= float64(n)
		return 0, true
	}

	deficit := float64(n) - l.available
	ratePerSec := float64(l.max) / float64(l.windowSecs)
	if ratePerSec <= 0 {
		return time.Second, false
	}
	wait := time.Duration(math.Ceil(deficit/ratePerSec*1000)) * time.Millisecond
	return wait, false
}

// refillLocked adds elapsed·(max/window) tokens, floor-rounded, never
// exceeding the usable capacity. Caller must hold l.mu.
func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	refill := math.Floor(elapsed * float64(l.max) / float64(l.windowSecs))
	if refill > 0 {
		l.available += refill
		cap := float64(l.usableCapacity())
		if l.available > cap {
			l.available = cap
		}
		l.lastRefill = now
	}
}

// Status returns {available, max, utilization_percent}.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()

	util := 0.0
	if l.max > 0 {
		util = (float64(l.max) - l.available) * 100 / float64(l.max)
	}
	return Status{
		Available:          int(l.available),
		Max:                l.max,
		UtilizationPercent: util,
	}
}
