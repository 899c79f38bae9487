// Package workerpool implements the bounded-concurrency worker pool (spec
// §5): a fixed number of goroutines draining the persistent queue, each
// exiting once it observes the queue empty after a dequeue timeout. The
// dequeue-process-retry shape is grounded on the teacher's
// services/crawler/worker.go WorkerPool.
package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/listingcrawl/listingcrawl/internal/models"
	"github.com/listingcrawl/listingcrawl/internal/orchestrator"
	"github.com/listingcrawl/listingcrawl/internal/queue"
)

const dequeueTimeout = 100 * time.Millisecond

// Pool runs concurrency workers against q, driving each dequeued job
// through orch against the run's shared state until the queue drains.
type Pool struct {
	queue       *queue.PersistentQueue
	orch        *orchestrator.Orchestrator
	runID       string
	state       *orchestrator.RunState
	concurrency int
	logger      arbor.ILogger
}

// New builds a Pool. concurrency below 1 is treated as 1.
func New(q *queue.PersistentQueue, orch *orchestrator.Orchestrator, runID string, state *orchestrator.RunState, concurrency int, logger arbor.ILogger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		queue:       q,
		orch:        orch,
		runID:       runID,
		state:       state,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run spawns the pool's workers and blocks until every one of them has
// observed an empty queue, or ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(p.concurrency)

	for i := 0; i < p.concurrency; i++ {
		go func(idx int) {
			defer wg.Done()
			p.workerLoop(ctx, idx)
		}(i)
	}

	wg.Wait()
}

// workerLoop dequeues with a bounded wait and processes each job via the
// orchestrator until the queue is empty on a timeout (spec §5).
func (p *Pool) workerLoop(ctx context.Context, idx int) {
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Dequeue(dequeueTimeout)
		if err != nil {
			p.logger.Error().Err(err).Int("worker", idx).Msg("dequeue failed")
			return
		}

		if job == nil {
			if p.queue.Empty() {
				return
			}
			continue
		}

		p.process(ctx, job)
		p.queue.TaskDone()
	}
}

func (p *Pool) process(ctx context.Context, job *models.Job) {
	job.Attempts++

	err := p.orch.RunJob(ctx, p.runID, job, p.state)
	if err == nil {
		return
	}

	job.LastError = err.Error()

	if job.ShouldRetry() {
		job.Status = models.JobStatusRetry
		p.logger.Warn().Err(err).Str("job_id", job.JobID).Int("attempt", job.Attempts).Msg("job failed, re-enqueueing")
		if reErr := p.queue.Enqueue(job); reErr != nil {
			p.logger.Error().Err(reErr).Str("job_id", job.JobID).Msg("failed to re-enqueue job")
		}
		return
	}

	job.Status = models.JobStatusFailed
	p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("job failed permanently")
}
