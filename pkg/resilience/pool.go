package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// WorkerPool runs submitted jobs on a fixed set of goroutines.
type WorkerPool struct {
	jobs    chan func()
	mu      sync.RWMutex
	closed  bool
	once    sync.Once
	wg      sync.WaitGroup
	running atomic.Int64
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{
		jobs: make(chan func(), queueSize),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}

	return p
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.running.Add(1)
		job()
		p.running.Add(-1)
	}
}

// Submit queues job, blocking while the queue is full until ctx is done.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}

	// Holding the read lock keeps Close from closing the channel mid-send.
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Running returns the number of jobs currently executing.
func (p *WorkerPool) Running() int {
	return int(p.running.Load())
}

// Queued returns the number of jobs waiting for a worker.
func (p *WorkerPool) Queued() int {
	return len(p.jobs)
}

// Close stops accepting jobs; queued jobs still run.
func (p *WorkerPool) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
