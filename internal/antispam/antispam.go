// Package antispam implements the per-user per-service sliding-window
// limiter with cool-down. State is process-local and resets on restart,
// which the callers accept.
package antispam

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultWindow is the sliding window over which attempts are counted.
	DefaultWindow = 60 * time.Second
	// DefaultThreshold is the attempt count that trips the cool-down.
	DefaultThreshold = 15
	// DefaultCooldown is applied once the threshold is exceeded.
	DefaultCooldown = 30 * time.Second

	cleanupInterval = time.Minute
)

// Decision is the outcome of one Check call.
type Decision struct {
	Allowed bool
	// RetryAfter is the remaining cool-down when the call was rejected.
	RetryAfter time.Duration
}

type entry struct {
	attempts      []time.Time
	cooldownUntil time.Time
}

// Limiter tracks attempts per (userID, serviceKey).
type Limiter struct {
	window    time.Duration
	threshold int
	cooldown  time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	stop    chan struct{}

	now func() time.Time // Injectable clock for tests
}

// New creates a Limiter with the default policy and starts its cleanup loop.
func New() *Limiter {
	return NewWithPolicy(DefaultWindow, DefaultThreshold, DefaultCooldown)
}

// NewWithPolicy creates a Limiter with an explicit policy.
func NewWithPolicy(window time.Duration, threshold int, cooldown time.Duration) *Limiter {
	l := &Limiter{
		window:    window,
		threshold: threshold,
		cooldown:  cooldown,
		entries:   make(map[string]*entry),
		stop:      make(chan struct{}),
		now:       time.Now,
	}
	go l.cleanup()
	return l
}

// Stop terminates the cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

// Check records an attempt for (userID, serviceKey) and decides whether it
// may proceed. Policy: reject while a cool-down is active; otherwise drop
// timestamps older than the window, append now, and trip a cool-down when
// the count exceeds the threshold.
func (l *Limiter) Check(userID, serviceKey string) Decision {
	key := userID + ":" + serviceKey
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}

	if e.cooldownUntil.After(now) {
		return Decision{Allowed: false, RetryAfter: e.cooldownUntil.Sub(now)}
	}

	cutoff := now.Add(-l.window)
	kept := e.attempts[:0]
	for _, ts := range e.attempts {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.attempts = append(kept, now)

	if len(e.attempts) > l.threshold {
		e.cooldownUntil = now.Add(l.cooldown)
		return Decision{Allowed: false, RetryAfter: l.cooldown}
	}

	return Decision{Allowed: true}
}

// RetryAfterMessage renders the remaining wait for the client.
func RetryAfterMessage(d time.Duration) string {
	sec := int(d.Seconds())
	if sec < 1 {
		sec = 1
	}
	return fmt.Sprintf("vui lòng thử lại sau %d giây", sec)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			cutoff := now.Add(-l.window)
			for key, e := range l.entries {
				if e.cooldownUntil.Before(now) && (len(e.attempts) == 0 || e.attempts[len(e.attempts)-1].Before(cutoff)) {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
