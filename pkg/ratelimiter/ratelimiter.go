// Package ratelimiter admits or rejects requests per user.
//
// Two interchangeable policies are offered behind the same CheckAndRecord
// entry point: a sliding-window request count and a fixed cooldown since the
// last request. All throttle state lives in this package, guarded by one
// mutex; callers never touch it directly.
package ratelimiter

import (
	"sync"
	"time"
)

// Policy names a throttling discipline.
type Policy string

const (
	// PolicyWindow rejects once a user has made Limit requests within the
	// trailing Window.
	PolicyWindow Policy = "window"
	// PolicyCooldown rejects until Cooldown has elapsed since the user's
	// previous admitted request.
	PolicyCooldown Policy = "cooldown"
)

const defaultWindow = time.Minute

// Opts is a carrier of options for Limiter.
type Opts struct {
	Policy Policy

	// Window mode.
	Limit  int
	Window time.Duration

	// Cooldown mode.
	Cooldown time.Duration
}

// Verdict is the outcome of one admission check.
type Verdict struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Seconds returns RetryAfter rounded up to whole seconds, for user-facing
// "try again in N seconds" messages.
func (v Verdict) Seconds() int {
	if v.RetryAfter <= 0 {
		return 0
	}
	return int((v.RetryAfter + time.Second - 1) / time.Second)
}

// Limiter tracks per-user throttle state. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	policy   Policy
	limit    int
	window   time.Duration
	cooldown time.Duration

	history map[string][]time.Time // window mode: admitted timestamps
	last    map[string]time.Time   // cooldown mode: last admitted request

	now func() time.Time
}

// New returns a Limiter for the configured policy.
func New(opts Opts) *Limiter {
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}

	return &Limiter{
		policy:   opts.Policy,
		limit:    opts.Limit,
		window:   window,
		cooldown: opts.Cooldown,
		history:  make(map[string][]time.Time),
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// CheckAndRecord admits or rejects one request from userID, recording it when
// admitted. Rejections carry the remaining wait. The check costs no network
// work, so callers gate before doing anything expensive.
func (l *Limiter) CheckAndRecord(userID string) Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.policy {
	case PolicyCooldown:
		return l.checkCooldown(userID)
	default:
		return l.checkWindow(userID)
	}
}

func (l *Limiter) checkWindow(userID string) Verdict {
	now := l.now()
	cutoff := now.Add(-l.window)

	// Prune lazily on every check; stale entries never outlive the next
	// request from the same user.
	recent := l.history[userID]
	valid := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.limit {
		l.history[userID] = valid
		return Verdict{RetryAfter: valid[0].Add(l.window).Sub(now)}
	}

	l.history[userID] = append(valid, now)
	return Verdict{Allowed: true}
}

func (l *Limiter) checkCooldown(userID string) Verdict {
	now := l.now()

	if last, ok := l.last[userID]; ok {
		if wait := last.Add(l.cooldown).Sub(now); wait > 0 {
			return Verdict{RetryAfter: wait}
		}
	}

	l.last[userID] = now
	return Verdict{Allowed: true}
}
