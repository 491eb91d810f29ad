package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MemoryLocker serializes work per user inside one process. Waiters are
// served in arrival order. A waiter that exceeds maxWait runs without the
// lock rather than dropping its message.
type MemoryLocker struct {
	mu      sync.Mutex
	queues  map[string][]chan struct{}
	maxWait time.Duration
}

func NewMemoryLocker(maxWait time.Duration) *MemoryLocker {
	return &MemoryLocker{
		queues:  make(map[string][]chan struct{}),
		maxWait: maxWait,
	}
}

func (l *MemoryLocker) WithLock(ctx context.Context, user string, fn func(ctx context.Context) error) error {
	ticket := make(chan struct{})

	l.mu.Lock()
	q := l.queues[user]
	l.queues[user] = append(q, ticket)
	if len(q) == 0 {
		close(ticket)
	}
	l.mu.Unlock()

	acquired, err := l.wait(ctx, user, ticket)
	if err != nil {
		return err
	}
	if acquired {
		defer l.release(user, ticket)
	} else {
		logrus.WithField("user", user).Warnf("[LOCK] Waited %s for in-memory lock, proceeding without it", l.maxWait)
	}

	return fn(ctx)
}

func (l *MemoryLocker) wait(ctx context.Context, user string, ticket chan struct{}) (bool, error) {
	var timeout <-chan time.Time
	if l.maxWait > 0 {
		t := time.NewTimer(l.maxWait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ticket:
		return true, nil
	case <-timeout:
		return l.abandon(user, ticket), nil
	case <-ctx.Done():
		if l.abandon(user, ticket) {
			l.release(user, ticket)
		}
		return false, ctx.Err()
	}
}

// abandon leaves the queue, unless the lock was handed over meanwhile in
// which case it reports true and the caller owns it.
func (l *MemoryLocker) abandon(user string, ticket chan struct{}) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	select {
	case <-ticket:
		return true
	default:
	}

	q := l.queues[user]
	for i, c := range q {
		if c == ticket {
			l.queues[user] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	if len(l.queues[user]) == 0 {
		delete(l.queues, user)
	}
	return false
}

func (l *MemoryLocker) release(user string, ticket chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.queues[user]
	if len(q) == 0 || q[0] != ticket {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(l.queues, user)
		return
	}
	l.queues[user] = q
	close(q[0])
}

// Waiting returns the queue length for user, holder included.
func (l *MemoryLocker) Waiting(user string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues[user])
}
