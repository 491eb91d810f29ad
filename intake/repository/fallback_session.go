package repository

import (
	"context"
	"errors"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/sirupsen/logrus"
)

// HealthReporter is satisfied by valkey.Monitor.
type HealthReporter interface {
	Healthy() bool
	ReportFailure(err error)
}

// FallbackSessionStore implements session.Store over a primary backend and an
// in-memory secondary. It never returns errors: a failing primary is reported
// to the health monitor and the call is served by the secondary.
type FallbackSessionStore struct {
	primary   session.Backend
	health    HealthReporter
	secondary session.Backend
	ttl       time.Duration
	now       func() time.Time
}

// NewFallbackSessionStore builds the store; primary and health may both be
// nil for single-instance deployments.
func NewFallbackSessionStore(primary session.Backend, health HealthReporter, secondary session.Backend, ttl time.Duration) *FallbackSessionStore {
	if primary == nil || health == nil {
		primary, health = nil, nil
	}
	return &FallbackSessionStore{
		primary:   primary,
		health:    health,
		secondary: secondary,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (f *FallbackSessionStore) usePrimary() bool {
	return f.primary != nil && f.health.Healthy()
}

// Mode is one of session.ModePrimary, ModeDegraded or ModeMemory.
func (f *FallbackSessionStore) Mode() string {
	switch {
	case f.primary == nil:
		return session.ModeMemory
	case f.health.Healthy():
		return session.ModePrimary
	default:
		return session.ModeDegraded
	}
}

func (f *FallbackSessionStore) Get(ctx context.Context, user string) *session.Session {
	if f.usePrimary() {
		s, err := f.primary.Get(ctx, user)
		switch {
		case err == nil:
			return s
		case errors.Is(err, ErrCorruptSession):
			logrus.WithError(err).WithField("user", user).Warn("[SESSION_STORE] Dropping unreadable session")
			_ = f.primary.Del(ctx, user)
			return nil
		default:
			f.fail(err, "get", user)
		}
	}

	s, err := f.secondary.Get(ctx, user)
	if err != nil {
		logrus.WithError(err).WithField("user", user).Error("[SESSION_STORE] Secondary get failed")
		return nil
	}
	return s
}

// Set refreshes s.LastMessageAt and writes with the configured TTL.
func (f *FallbackSessionStore) Set(ctx context.Context, s *session.Session) {
	if s == nil || s.User == "" {
		return
	}
	s.LastMessageAt = f.now()

	if f.usePrimary() {
		err := f.primary.Set(ctx, s, f.ttl)
		if err == nil {
			return
		}
		f.fail(err, "set", s.User)
	}

	if err := f.secondary.Set(ctx, s, f.ttl); err != nil {
		logrus.WithError(err).WithField("user", s.User).Error("[SESSION_STORE] Secondary set failed")
	}
}

// Del clears both backends so a copy written while degraded cannot resurface.
func (f *FallbackSessionStore) Del(ctx context.Context, user string) {
	if f.usePrimary() {
		if err := f.primary.Del(ctx, user); err != nil {
			f.fail(err, "del", user)
		}
	}
	if err := f.secondary.Del(ctx, user); err != nil {
		logrus.WithError(err).WithField("user", user).Error("[SESSION_STORE] Secondary delete failed")
	}
}

func (f *FallbackSessionStore) fail(err error, op, user string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	logrus.WithError(err).WithFields(logrus.Fields{"user": user, "op": op}).
		Warn("[SESSION_STORE] Primary failed, serving from memory")
	f.health.ReportFailure(err)
}
