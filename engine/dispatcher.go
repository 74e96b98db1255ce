package engine

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/elijahnyp/torch_sync/metrics"
)

// WriteJob is one visibility write for one light.
type WriteJob struct {
	Issued   time.Time
	EntityID string
	Hidden   bool
}

// WriteFunc performs a write. It should honour ctx.
type WriteFunc func(ctx context.Context, job WriteJob) error

// FailureFunc is called from a worker goroutine when a write fails.
type FailureFunc func(job WriteJob, err error)

// Dispatcher runs visibility writes on a fixed pool of workers. Jobs for the
// same light always land on the same worker, so they complete in the order
// they were submitted; jobs for different lights run independently.
type Dispatcher struct {
	write   WriteFunc
	failed  FailureFunc
	queues  []chan WriteJob
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
	workers sync.WaitGroup
}

// NewDispatcher starts workers goroutines, each with a queue of depth jobs.
// A zero timeout lets writes run without a deadline.
func NewDispatcher(workers, depth int, timeout time.Duration, write WriteFunc, failed FailureFunc) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = 1
	}
	d := &Dispatcher{
		write:   write,
		failed:  failed,
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		q := make(chan WriteJob, depth)
		d.queues = append(d.queues, q)
		d.workers.Add(1)
		go d.worker(q)
	}
	return d
}

// Submit queues a job and returns without waiting for it to run. It blocks
// only while the target worker's queue is full. Submitting to a closed
// dispatcher drops the job and returns false.
func (d *Dispatcher) Submit(job WriteJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	d.pending.Add(1)
	d.queues[d.shard(job.EntityID)] <- job
	return true
}

// Wait blocks until every submitted job has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close stops accepting jobs, lets the queued ones finish and stops the
// workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) shard(entityID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(entityID))
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) worker(jobs <-chan WriteJob) {
	defer d.workers.Done()
	for job := range jobs {
		d.process(job)
	}
}

func (d *Dispatcher) process(job WriteJob) {
	defer d.pending.Done()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.write(ctx, job)
	metrics.VisibilityWriteDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.VisibilityWrites.WithLabelValues("error").Inc()
		if d.failed != nil {
			d.failed(job, err)
		}
		return
	}
	metrics.VisibilityWrites.WithLabelValues("ok").Inc()
}
