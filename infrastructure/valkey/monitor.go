package valkey

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger is the part of Client the monitor needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor tracks whether valkey is usable. Health flips on two kinds of
// events: the periodic ping and failures reported by callers. Listeners
// registered with OnChange run on every flip.
type Monitor struct {
	pinger      Pinger
	interval    time.Duration
	pingTimeout time.Duration

	healthy   atomic.Bool
	failures  chan error
	mu        sync.RWMutex
	listeners []func(healthy bool)
}

// NewMonitor starts out healthy, since NewClient already pinged successfully.
func NewMonitor(pinger Pinger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	m := &Monitor{
		pinger:      pinger,
		interval:    interval,
		pingTimeout: time.Second,
		failures:    make(chan error, 1),
	}
	m.healthy.Store(true)
	return m
}

func (m *Monitor) Healthy() bool {
	return m.healthy.Load()
}

// OnChange registers fn for health transitions.
func (m *Monitor) OnChange(fn func(healthy bool)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// ReportFailure marks valkey unhealthy right away; the ping loop restores it.
func (m *Monitor) ReportFailure(err error) {
	m.set(false, err)
	select {
	case m.failures <- err:
	default:
	}
}

// Run pings until ctx ends. After a failure it probes at a faster pace.
func (m *Monitor) Run(ctx context.Context) {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.failures:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.retryInterval())
		case <-timer.C:
			pingCtx, cancel := context.WithTimeout(ctx, m.pingTimeout)
			err := m.pinger.Ping(pingCtx)
			cancel()
			m.set(err == nil, err)

			next := m.interval
			if err != nil {
				next = m.retryInterval()
			}
			timer.Reset(next)
		}
	}
}

func (m *Monitor) retryInterval() time.Duration {
	if d := m.interval / 5; d > 100*time.Millisecond {
		return d
	}
	return 100 * time.Millisecond
}

func (m *Monitor) set(healthy bool, cause error) {
	if m.healthy.Swap(healthy) == healthy {
		return
	}

	if healthy {
		logrus.Info("[VALKEY] Connection restored, using primary session store")
	} else {
		logrus.WithError(cause).Warn("[VALKEY] Connection lost, falling back to in-memory state")
	}

	m.mu.RLock()
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(healthy)
	}
}
