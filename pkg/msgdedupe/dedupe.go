package msgdedupe

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a message id is remembered.
const DefaultTTL = 5 * time.Minute

// Set remembers message ids for a bounded time. It is process-scoped:
// build one at startup and share it.
type Set struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// New creates a Set; a non-positive ttl uses DefaultTTL.
func New(ttl time.Duration) *Set {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Set{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// FirstSeen records id and reports true only for its first sighting inside
// the TTL window. Empty ids are never treated as duplicates.
func (s *Set) FirstSeen(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.entries[id]; ok && now.Before(exp) {
		return false
	}
	s.entries[id] = now.Add(s.ttl)
	return true
}

// Len returns the number of remembered ids, expired ones included until the next sweep.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops expired ids and returns how many were removed.
func (s *Set) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *Set) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
