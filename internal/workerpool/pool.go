package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers       int   `json:"workers"`
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	ActiveWorkers int64 `json:"active_workers"`
}

// Pool runs submitted jobs on a fixed set of goroutines
type Pool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	start    sync.Once
	stop     sync.Once

	mu     sync.RWMutex
	closed bool

	total     atomic.Int64
	completed atomic.Int64
	active    atomic.Int64
}

// New creates a pool with the given number of workers; workers <= 0 uses one
// worker per CPU.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Pool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (p *Pool) Start() {
	p.start.Do(func() {
		for i := 0; i < p.workers; i++ {
			go p.worker()
		}
	})
}

func (p *Pool) worker() {
	for job := range p.jobQueue {
		p.run(job)
	}
}

func (p *Pool) run(job func()) {
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		p.completed.Add(1)
		p.wg.Done()
	}()
	job()
}

// Submit queues a job and reports whether it was accepted. Jobs submitted
// after Close are rejected.
func (p *Pool) Submit(job func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	p.wg.Add(1)
	p.total.Add(1)
	p.jobQueue <- job
	return true
}

// Wait blocks until every accepted job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting jobs and lets the workers drain the queue.
func (p *Pool) Close() {
	p.stop.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobQueue)
		p.mu.Unlock()
	})
}

// GetStats returns the current counters.
func (p *Pool) GetStats() Stats {
	return Stats{
		Workers:       p.workers,
		TotalJobs:     p.total.Load(),
		CompletedJobs: p.completed.Load(),
		ActiveWorkers: p.active.Load(),
	}
}
