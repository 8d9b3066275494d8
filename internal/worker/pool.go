package worker

import (
	"context"
	"sync"

	"github.com/martinsuchenak/assetd/internal/log"
)

// Pool manages concurrent workers draining a job queue.
type Pool struct {
	maxWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// Job represents a unit of work.
type Job struct {
	ID      string
	Handler func(context.Context)
}

// NewPool creates a worker pool bounded at maxWorkers.
func NewPool(parent context.Context, maxWorkers int) *Pool {
	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		maxWorkers: maxWorkers,
		jobs:       make(chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the workers.
func (p *Pool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Debug("Worker pool started", "workers", p.maxWorkers)
}

// Submit queues a job. Returns the pool context error once the pool has
// been cancelled.
func (p *Pool) Submit(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Drain closes the queue and blocks until every queued job finished.
func (p *Pool) Drain() {
	close(p.jobs)
	p.wg.Wait()
}

// Cancel signals the pool context. Running handlers observe it through
// the context they were handed; queued jobs still run so they can
// finalize, but they see a cancelled context immediately.
func (p *Pool) Cancel() {
	p.cancel()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		log.Debug("Worker executing job", "worker_id", id, "job_id", job.ID)
		job.Handler(p.ctx)
	}
}
