package repository

import (
	"context"
	"sync"
	"time"

	"github.com/himanshujainsanghai/up-igrs-new-sub002/intake/domain/session"
	"github.com/sirupsen/logrus"
)

// MemorySessionStore keeps sessions in a map with per-entry expiry.
// Single instance only: data is lost on restart.
type MemorySessionStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data     *session.Session
	expireAt time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (ms *MemorySessionStore) Set(ctx context.Context, s *session.Session, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.entries[s.User] = &memoryEntry{
		data:     s.Clone(),
		expireAt: ms.now().Add(ttl),
	}
	return nil
}

// Get returns a copy of the stored session, or nil when absent or expired.
func (ms *MemorySessionStore) Get(ctx context.Context, user string) (*session.Session, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	e, ok := ms.entries[user]
	if !ok || ms.now().After(e.expireAt) {
		return nil, nil
	}
	return e.data.Clone(), nil
}

func (ms *MemorySessionStore) Del(ctx context.Context, user string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.entries, user)
	return nil
}

// Len counts live entries.
func (ms *MemorySessionStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	now := ms.now()
	n := 0
	for _, e := range ms.entries {
		if !now.After(e.expireAt) {
			n++
		}
	}
	return n
}

// Run removes expired sessions every interval until ctx is done.
func (ms *MemorySessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ms.cleanup()
		}
	}
}

func (ms *MemorySessionStore) cleanup() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for key, e := range ms.entries {
		if now.After(e.expireAt) {
			delete(ms.entries, key)
			removed++
		}
	}

	if removed > 0 {
		logrus.Debugf("[MemorySessionStore] Cleanup: removed %d expired sessions", removed)
	}
}
