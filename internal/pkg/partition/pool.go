// Package partition runs tasks on a fixed set of workers, one per partition.
// Tasks submitted with the same key always land on the same partition and run
// in submission order; tasks of different keys may run concurrently.
package partition

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"

	"github.com/autopeer-io/remoteops/internal/pkg/metrics"
)

var (
	// ErrPoolClosed is returned by Submit after the pool stopped.
	ErrPoolClosed = errors.New("partition pool is closed")
	// ErrPoolNotStarted is returned by Submit before Start.
	ErrPoolNotStarted = errors.New("partition pool not started")
)

// Task is one unit of work. A retryable error makes the pool run it again.
type Task func(ctx context.Context) error

type job struct {
	key  string
	task Task
}

// Options configures a Pool.
type Options struct {
	Partitions int
	QueueSize  int

	// Timeout bounds one execution of a task. Zero disables it.
	Timeout time.Duration

	// Backoff drives re-execution of tasks failing with a retryable error.
	Backoff wait.Backoff

	// Retryable decides which errors are worth another attempt. Nil never retries.
	Retryable func(error) bool

	Log logr.Logger
}

// Pool is a keyed worker pool.
type Pool struct {
	opts       Options
	partitions []chan job
	wg         sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// New creates a pool; no goroutine runs until Start.
func New(opts Options) *Pool {
	if opts.Partitions < 1 {
		opts.Partitions = 1
	}
	if opts.Retryable == nil {
		opts.Retryable = func(error) bool { return false }
	}
	if opts.Backoff.Steps < 1 {
		opts.Backoff.Steps = 1
	}

	partitions := make([]chan job, opts.Partitions)
	for i := range partitions {
		partitions[i] = make(chan job, opts.QueueSize)
	}
	return &Pool{opts: opts, partitions: partitions}
}

// Start runs the workers and blocks until ctx is cancelled. Queued tasks are
// drained before Start returns.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("partition pool already started")
	}
	p.started = true
	p.mu.Unlock()

	p.opts.Log.Info("Starting partition pool", "partitions", len(p.partitions), "queueSize", p.opts.QueueSize)

	// Tasks keep running while the pool drains; only the per-task timeout bounds them.
	runCtx := context.WithoutCancel(ctx)
	for i, ch := range p.partitions {
		p.wg.Add(1)
		go func(id int, ch <-chan job) {
			defer p.wg.Done()
			for j := range ch {
				p.run(runCtx, id, j)
			}
		}(i, ch)
	}

	<-ctx.Done()
	p.stop()
	p.opts.Log.Info("Partition pool stopped")
	return nil
}

// Submit enqueues task on the partition owning key. It blocks while that
// partition is full, or until ctx is done.
func (p *Pool) Submit(ctx context.Context, key string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolClosed
	}

	select {
	case p.partitions[Of(key, len(p.partitions))] <- job{key: key, task: task}:
		metrics.InflightEvents.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Started reports whether Start has been called.
func (p *Pool) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Pool) stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		for _, ch := range p.partitions {
			close(ch)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int, j job) {
	defer metrics.InflightEvents.Dec()

	attempt := 0
	err := retry.OnError(p.opts.Backoff, p.opts.Retryable, func() error {
		if attempt > 0 {
			metrics.RedeliveriesTotal.Inc()
			p.opts.Log.V(1).Info("Redelivering task", "partition", id, "key", j.key, "attempt", attempt)
		}
		attempt++
		return p.execute(ctx, j.task)
	})
	if err != nil {
		p.opts.Log.Error(err, "Task failed", "partition", id, "key", j.key, "attempts", attempt)
	}
}

func (p *Pool) execute(ctx context.Context, task Task) error {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	return task(ctx)
}

// Of returns the partition index of key among n partitions.
func Of(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
