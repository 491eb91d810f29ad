package repository

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/infrastructure/valkey"
	"github.com/sirupsen/logrus"
	valkeylib "github.com/valkey-io/valkey-go"
)

const (
	lockPollInterval = 50 * time.Millisecond
	lockJitter       = 20
)

// Deletes the lock only while it still holds our token.
const releaseLockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// ValkeyLocker is a distributed per-user mutex built on SET NX PX. The TTL
// releases locks held by crashed instances.
type ValkeyLocker struct {
	client  *valkey.Client
	health  HealthReporter
	ttl     time.Duration
	maxWait time.Duration
}

func NewValkeyLocker(client *valkey.Client, health HealthReporter, ttl, maxWait time.Duration) *ValkeyLocker {
	return &ValkeyLocker{
		client:  client,
		health:  health,
		ttl:     ttl,
		maxWait: maxWait,
	}
}

func (l *ValkeyLocker) key(user string) string {
	return l.client.Key("lock", user)
}

func (l *ValkeyLocker) inner() valkeylib.Client {
	return l.client.Inner()
}

func (l *ValkeyLocker) WithLock(ctx context.Context, user string, fn func(ctx context.Context) error) error {
	token, err := l.acquire(ctx, user)
	if err != nil {
		return err
	}
	if token != "" {
		defer l.release(user, token)
	} else {
		logrus.WithField("user", user).Warnf("[LOCK] Could not acquire distributed lock within %s, proceeding without it", l.maxWait)
	}
	return fn(ctx)
}

// acquire returns an empty token when the wait ran out or valkey failed.
// Only context cancellation is returned as an error.
func (l *ValkeyLocker) acquire(ctx context.Context, user string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		cmd := l.inner().B().Set().
			Key(l.key(user)).
			Value(token).
			Nx().
			Px(l.ttl).
			Build()

		err := l.inner().Do(ctx, cmd).Error()
		switch {
		case err == nil:
			return token, nil
		case valkey.IsNil(err):
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			if l.health != nil {
				l.health.ReportFailure(err)
			}
			logrus.WithError(err).WithField("user", user).Warn("[LOCK] Valkey lock attempt failed")
			return "", nil
		}

		if time.Now().After(deadline) {
			return "", nil
		}

		sleep := lockPollInterval + time.Duration(rand.Intn(lockJitter))*time.Millisecond
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (l *ValkeyLocker) release(user, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := l.inner().B().Eval().
		Script(releaseLockScript).
		Numkeys(1).
		Key(l.key(user)).
		Arg(token).
		Build()

	if err := l.inner().Do(ctx, cmd).Error(); err != nil {
		logrus.WithError(err).WithField("user", user).Warn("[LOCK] Failed to release distributed lock")
	}
}

// FallbackLocker uses the distributed lock while valkey is healthy and the
// in-process queue otherwise, mirroring FallbackSessionStore.
type FallbackLocker struct {
	primary   *ValkeyLocker
	health    HealthReporter
	secondary *MemoryLocker
}

func NewFallbackLocker(primary *ValkeyLocker, health HealthReporter, secondary *MemoryLocker) *FallbackLocker {
	return &FallbackLocker{primary: primary, health: health, secondary: secondary}
}

func (l *FallbackLocker) WithLock(ctx context.Context, user string, fn func(ctx context.Context) error) error {
	if l.primary != nil && l.health != nil && l.health.Healthy() {
		return l.primary.WithLock(ctx, user, fn)
	}
	return l.secondary.WithLock(ctx, user, fn)
}
