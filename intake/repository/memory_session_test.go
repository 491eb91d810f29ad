package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/grievance"
	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_SetGetDel(t *testing.T) {
	ctx := context.Background()
	ms := NewMemorySessionStore()

	s := session.New("+919876543210", time.Now())
	s.State = session.StateCollectBasics
	s.Data.Name = "Ram"
	require.NoError(t, ms.Set(ctx, s, time.Hour))

	got, err := ms.Get(ctx, s.User)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ram", got.Data.Name)

	got.Data.Name = "mutated"
	again, _ := ms.Get(ctx, s.User)
	assert.Equal(t, "Ram", again.Data.Name, "callers get copies")

	require.NoError(t, ms.Del(ctx, s.User))
	gone, err := ms.Get(ctx, s.User)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMemorySessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	ms := NewMemorySessionStore()
	ms.now = func() time.Time { return now }

	require.NoError(t, ms.Set(ctx, session.New("u1", now), time.Minute))
	assert.Equal(t, 1, ms.Len())

	now = now.Add(2 * time.Minute)
	got, err := ms.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, ms.Len())

	ms.cleanup()
	assert.Empty(t, ms.entries)
}

type failingBackend struct {
	err   error
	calls int
}

func (f *failingBackend) Get(context.Context, string) (*session.Session, error) {
	f.calls++
	return nil, f.err
}

func (f *failingBackend) Set(context.Context, *session.Session, time.Duration) error {
	f.calls++
	return f.err
}

func (f *failingBackend) Del(context.Context, string) error {
	f.calls++
	return f.err
}

type fakeHealth struct {
	healthy  bool
	failures int
}

func (h *fakeHealth) Healthy() bool { return h.healthy }

func (h *fakeHealth) ReportFailure(error) {
	h.failures++
	h.healthy = false
}

func TestFallbackSessionStore_DegradesOnPrimaryFailure(t *testing.T) {
	ctx := context.Background()
	primary := &failingBackend{err: errors.New("dial tcp: connection refused")}
	health := &fakeHealth{healthy: true}
	secondary := NewMemorySessionStore()
	store := NewFallbackSessionStore(primary, health, secondary, time.Hour)

	assert.Equal(t, session.ModePrimary, store.Mode())

	s := session.New("u1", time.Time{})
	s.Data.AddAttachment(grievance.Attachment{MediaID: "m1"})
	store.Set(ctx, s)

	assert.Equal(t, 1, health.failures)
	assert.Equal(t, session.ModeDegraded, store.Mode())
	assert.False(t, s.LastMessageAt.IsZero(), "set refreshes the activity clock")

	got := store.Get(ctx, "u1")
	require.NotNil(t, got)
	assert.Len(t, got.Data.Attachments, 1)
	assert.Equal(t, 1, primary.calls, "degraded store skips the primary")

	store.Del(ctx, "u1")
	assert.Nil(t, store.Get(ctx, "u1"))
}

func TestFallbackSessionStore_CorruptRecordIsDropped(t *testing.T) {
	ctx := context.Background()
	primary := &failingBackend{err: ErrCorruptSession}
	health := &fakeHealth{healthy: true}
	store := NewFallbackSessionStore(primary, health, NewMemorySessionStore(), time.Hour)

	assert.Nil(t, store.Get(ctx, "u1"))
	assert.True(t, health.healthy, "decode errors do not mark valkey unhealthy")
	assert.Equal(t, 2, primary.calls, "get then delete")
}

func TestFallbackSessionStore_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	store := NewFallbackSessionStore(nil, nil, NewMemorySessionStore(), time.Hour)
	assert.Equal(t, session.ModeMemory, store.Mode())

	store.Set(ctx, session.New("u1", time.Time{}))
	assert.NotNil(t, store.Get(ctx, "u1"))
	store.Set(ctx, nil)
}
