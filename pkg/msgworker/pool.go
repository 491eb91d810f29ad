package msgworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is a unit of work bound to a key. Jobs sharing a key always run on the
// same worker, in dispatch order.
type Job struct {
	Key     string
	Kind    string
	Handler func(ctx context.Context) error
}

// PoolStats is a point-in-time view of the pool used by the health endpoint.
type PoolStats struct {
	Name            string        `json:"name"`
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalErrors     int64         `json:"total_errors"`
	WorkerStats     []WorkerStats `json:"worker_stats"`
	ActiveKeys      int           `json:"active_keys"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool is a fixed set of workers, each with its own queue. Keys are hashed
// onto workers so one user never has two jobs running at once in-process.
type Pool struct {
	name       string
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32
	started    int32

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64

	activeMu   sync.Mutex
	activeKeys map[string]int

	// OnJobDone is invoked after every job with its kind and outcome.
	OnJobDone func(kind string, err error, elapsed time.Duration)
}

type worker struct {
	id            int
	jobQueue      chan Job
	ctx           context.Context
	isProcessing  int32
	jobsProcessed int64
	pool          *Pool
}

// NewPool creates a pool; call Start before dispatching.
func NewPool(name string, numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	return &Pool{
		name:       name,
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
		activeKeys: make(map[string]int),
	}
}

// Start launches the workers. Jobs receive ctx, so cancelling it aborts
// in-flight network calls; Stop drains queues before returning.
func (p *Pool) Start(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return
	}

	for i := 0; i < p.numWorkers; i++ {
		w := &worker{
			id:       i,
			jobQueue: make(chan Job, p.queueSize),
			ctx:      ctx,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[MSG_WORKER_POOL] %s started with %d workers, queue size: %d", p.name, p.numWorkers, p.queueSize)
}

// TryDispatch enqueues job without blocking and reports whether it was accepted.
func (p *Pool) TryDispatch(job Job) bool {
	if atomic.LoadInt32(&p.stopped) == 1 || atomic.LoadInt32(&p.started) == 0 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.Key)
	atomic.AddInt64(&p.totalDispatched, 1)

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()

	if sent {
		p.activeMu.Lock()
		p.activeKeys[job.Key]++
		p.activeMu.Unlock()
		return true
	}

	atomic.AddInt64(&p.totalDropped, 1)
	logrus.Warnf("[MSG_WORKER_POOL] %s worker %d queue full (or stopped), dropping %s job for %s",
		p.name, shard, job.Kind, job.Key)
	return false
}

// Dispatch is TryDispatch without the result.
func (p *Pool) Dispatch(job Job) {
	_ = p.TryDispatch(job)
}

// Stop refuses new jobs, lets every queued job finish and waits for the workers.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		if atomic.LoadInt32(&p.started) == 0 {
			return
		}
		logrus.Infof("[MSG_WORKER_POOL] %s stopping workers...", p.name)

		for _, w := range p.workers {
			close(w.jobQueue)
		}
		p.wg.Wait()

		logrus.Infof("[MSG_WORKER_POOL] %s all workers stopped", p.name)
	})
}

func (p *Pool) shardFor(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.numWorkers))
}

// GetStats returns live pool metrics.
func (p *Pool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, 0, len(p.workers))
	activeWorkers := 0

	for _, w := range p.workers {
		if w == nil {
			continue
		}
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats = append(workerStats, WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		})
	}

	p.activeMu.Lock()
	activeKeys := len(p.activeKeys)
	p.activeMu.Unlock()

	return PoolStats{
		Name:            p.name,
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
		ActiveKeys:      activeKeys,
	}
}

func (p *Pool) release(key string) {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	if p.activeKeys[key] <= 1 {
		delete(p.activeKeys, key)
		return
	}
	p.activeKeys[key]--
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	logrus.Debugf("[MSG_WORKER_POOL] %s worker %d started", w.pool.name, w.id)

	for job := range w.jobQueue {
		w.execute(job)
	}

	logrus.Debugf("[MSG_WORKER_POOL] %s worker %d shutting down", w.pool.name, w.id)
}

func (w *worker) execute(job Job) {
	started := time.Now()
	atomic.StoreInt32(&w.isProcessing, 1)

	var err error
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[MSG_WORKER_POOL] %s worker %d panic for %s: %v", w.pool.name, w.id, job.Key, r)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
		w.pool.release(job.Key)
		if w.pool.OnJobDone != nil {
			w.pool.OnJobDone(job.Kind, err, time.Since(started))
		}
	}()

	err = job.Handler(w.ctx)
	if err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).Errorf("[MSG_WORKER_POOL] %s worker %d %s job failed for %s",
			w.pool.name, w.id, job.Kind, job.Key)
	}
}
