package scheduler

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/config"
)

// Pool runs jobs on a fixed worker pool fed by a bounded queue. A job is
// handed to exactly one worker, which owns it through every retry, so the
// at-most-one-concurrent-attempt invariant holds by construction.
type Pool struct {
	*core
	cfg config.SchedulerConfig

	queue chan *job
	wg    sync.WaitGroup

	runCtx    context.Context
	runCancel context.CancelFunc

	stateMu    sync.Mutex
	isShutdown bool
	// submitters counts Submit calls in flight. Shutdown waits for it before
	// closing the queue, so a Submit blocked on a full queue never sends on a
	// closed channel.
	submitters sync.WaitGroup
}

var _ Scheduler = (*Pool)(nil)

// NewPool starts the worker pool immediately.
func NewPool(cfg config.SchedulerConfig, deps Deps, logger *zap.Logger) *Pool {
	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	p := &Pool{
		core:      newCore(deps, logger.Named("scheduler")),
		cfg:       cfg,
		queue:     make(chan *job, queueSize),
		runCtx:    runCtx,
		runCancel: runCancel,
	}

	p.logger.Info("Starting scheduler worker pool", zap.Int("concurrency", concurrency))
	for i := 0; i < concurrency; i++ {
		p.wg.Add(1)
		go p.runWorker(i + 1)
	}
	return p
}

func (p *Pool) Submit(ctx context.Context, req schemas.JobRequest) (string, error) {
	p.stateMu.Lock()
	if p.isShutdown {
		p.stateMu.Unlock()
		return "", errors.New("scheduler is shut down")
	}
	p.submitters.Add(1)
	p.stateMu.Unlock()
	defer p.submitters.Done()

	j := p.register(req)
	select {
	case p.queue <- j:
		return j.id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.runCtx.Done():
		return "", errors.New("scheduler is shut down")
	}
}

func (p *Pool) Status(jobID string) (*schemas.JobStatus, error) {
	return p.status(jobID)
}

// Shutdown stops accepting jobs and waits for workers to drain the queue.
// If ctx expires first, remaining jobs are cancelled mid-backoff.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stateMu.Lock()
	if p.isShutdown {
		p.stateMu.Unlock()
		return nil
	}
	p.isShutdown = true
	p.stateMu.Unlock()

	// Workers keep draining while we wait, so a submitter blocked on a full
	// queue completes once a slot frees up.
	p.submitters.Wait()
	close(p.queue)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.runCancel()
		return nil
	case <-ctx.Done():
		p.runCancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) runWorker(workerID int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker_id", workerID))

	for {
		select {
		case <-p.runCtx.Done():
			logger.Info("Worker shutting down immediately")
			return
		case j, ok := <-p.queue:
			if !ok {
				logger.Debug("Queue closed and drained, worker exiting")
				return
			}
			p.runJob(p.runCtx, j)
		}
	}
}
