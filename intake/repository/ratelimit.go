package repository

import (
	"context"
	"sync"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/valkey"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/sirupsen/logrus"
)

// MemoryRateLimiter is a fixed-window counter per user.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	windows map[string]*rateWindow
	now     func() time.Time
}

type rateWindow struct {
	start time.Time
	count int
}

func NewMemoryRateLimiter(max int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		max:     max,
		window:  window,
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

func (r *MemoryRateLimiter) Allow(ctx context.Context, user string) session.Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	w, ok := r.windows[user]
	if !ok || now.Sub(w.start) >= r.window {
		w = &rateWindow{start: now}
		r.windows[user] = w
	}
	w.count++
	return decide(w.count, r.max)
}

// Sweep forgets windows that have ended.
func (r *MemoryRateLimiter) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for user, w := range r.windows {
		if now.Sub(w.start) >= r.window {
			delete(r.windows, user)
		}
	}
}

// Run sweeps once per window until ctx is done.
func (r *MemoryRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func decide(count, max int) session.Decision {
	if count <= max {
		return session.Decision{Allowed: true}
	}
	return session.Decision{Allowed: false, Notify: count == max+1}
}

// ValkeyRateLimiter shares the window across instances with INCR + PEXPIRE.
// While valkey is unhealthy it defers to the in-memory limiter.
type ValkeyRateLimiter struct {
	client   *valkey.Client
	health   HealthReporter
	fallback *MemoryRateLimiter
	max      int
	window   time.Duration
}

func NewValkeyRateLimiter(client *valkey.Client, health HealthReporter, fallback *MemoryRateLimiter, max int, window time.Duration) *ValkeyRateLimiter {
	return &ValkeyRateLimiter{
		client:   client,
		health:   health,
		fallback: fallback,
		max:      max,
		window:   window,
	}
}

func (r *ValkeyRateLimiter) Allow(ctx context.Context, user string) session.Decision {
	if !r.health.Healthy() {
		return r.fallback.Allow(ctx, user)
	}

	inner := r.client.Inner()
	key := r.client.Key("ratelimit", user)

	count, err := inner.Do(ctx, inner.B().Incr().Key(key).Build()).AsInt64()
	if err != nil {
		r.health.ReportFailure(err)
		logrus.WithError(err).WithField("user", user).Warn("[RATE_LIMIT] Valkey counter failed, using in-memory window")
		return r.fallback.Allow(ctx, user)
	}
	if count == 1 {
		cmd := inner.B().Pexpire().Key(key).Milliseconds(r.window.Milliseconds()).Build()
		if err := inner.Do(ctx, cmd).Error(); err != nil {
			logrus.WithError(err).WithField("user", user).Warn("[RATE_LIMIT] Failed to set window expiry")
		}
	}
	return decide(int(count), r.max)
}
