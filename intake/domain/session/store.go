package session

import (
	"context"
	"time"
)

// Backend is a raw keyed session store that reports its failures.
type Backend interface {
	Get(ctx context.Context, user string) (*Session, error)
	Set(ctx context.Context, s *Session, ttl time.Duration) error
	Del(ctx context.Context, user string) error
}

// Store never fails: backend errors degrade to a nil session or a no-op.
type Store interface {
	Get(ctx context.Context, user string) *Session
	Set(ctx context.Context, s *Session)
	Del(ctx context.Context, user string)
}

// Store modes reported by the health endpoint.
const (
	ModePrimary  = "primary"
	ModeDegraded = "degraded"
	ModeMemory   = "memory"
)

// Locker serializes work per user. fn runs even when the lock could not be
// acquired within the configured wait.
type Locker interface {
	WithLock(ctx context.Context, user string, fn func(ctx context.Context) error) error
}

// Decision is the outcome of a rate limit check. Notify is true only for
// the first rejected message of a window.
type Decision struct {
	Allowed bool
	Notify  bool
}

type RateLimiter interface {
	Allow(ctx context.Context, user string) Decision
}
