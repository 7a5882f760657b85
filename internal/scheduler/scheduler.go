// Package scheduler drives submitted goals through the job state machine
// PENDING -> RUNNING -> {SUCCESS | RETRY -> RUNNING | FAILURE}, with
// exponential backoff between attempts and an audit record per attempt.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/audit"
)

// Scheduler accepts goal jobs and reports their state.
type Scheduler interface {
	// Submit enqueues a job and returns its id. The returned id is valid
	// for Status immediately, before the first attempt starts.
	Submit(ctx context.Context, req schemas.JobRequest) (string, error)
	// Status reports the current view of a job.
	Status(jobID string) (*schemas.JobStatus, error)
	// Shutdown stops accepting jobs and waits for in-flight work.
	Shutdown(ctx context.Context) error
}

var ErrJobNotFound = errors.New("job not found")

// Deps are the collaborators every scheduler backend drives per attempt.
type Deps struct {
	Orchestrator schemas.Orchestrator
	Audit        *audit.Trail
	Resources    schemas.ResourceStateStore
	Events       schemas.EventPublisher
	Logger       *zap.Logger
}

// job is the scheduler's mutable record of one submission. All field access
// after construction goes through the mutex; a job is only ever executed by
// one goroutine at a time.
type job struct {
	mu sync.Mutex

	id      string
	traceID string
	req     schemas.JobRequest

	state      schemas.JobState
	retryCount int
	auditID    int64
	err        string
	errCode    schemas.ErrorCode
	result     *schemas.ExecutionOutcome
}

func (j *job) setState(state schemas.JobState) {
	j.mu.Lock()
	j.state = state
	j.mu.Unlock()
}

func (j *job) status() *schemas.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return &schemas.JobStatus{
		JobID:      j.id,
		State:      j.state,
		Ready:      j.state.Terminal(),
		Successful: j.state == schemas.JobSuccess,
		RetryCount: j.retryCount,
		TraceID:    j.traceID,
		Error:      j.err,
		ErrorCode:  j.errCode,
		Result:     j.result,
	}
}

// core holds the state and attempt logic shared by the pool and eager
// backends. The backends differ only in where runJob executes.
type core struct {
	deps   Deps
	logger *zap.Logger

	// sleep is the inter-attempt delay, replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	jobs map[string]*job
}

func newCore(deps Deps, logger *zap.Logger) *core {
	return &core{
		deps:   deps,
		logger: logger,
		sleep:  sleepCtx,
		jobs:   make(map[string]*job),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *core) register(req schemas.JobRequest) *job {
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}
	j := &job{
		id:      uuid.New().String(),
		traceID: traceID,
		req:     req,
		state:   schemas.JobPending,
	}

	c.mu.Lock()
	c.jobs[j.id] = j
	c.mu.Unlock()
	return j
}

func (c *core) status(jobID string) (*schemas.JobStatus, error) {
	c.mu.Lock()
	j, ok := c.jobs[jobID]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return j.status(), nil
}

// runJob drives one job to a terminal state, sleeping between attempts.
// The job never leaves this goroutine, so two attempts of the same job can
// never run concurrently.
func (c *core) runJob(ctx context.Context, j *job) {
	logger := c.logger.With(
		zap.String("job_id", j.id),
		zap.String("trace_id", j.traceID))

	for {
		outcome := c.attempt(ctx, j, logger)
		if outcome.Status == schemas.StepSuccess {
			c.resolveSuccess(ctx, j, outcome, logger)
			return
		}

		j.mu.Lock()
		retryCount := j.retryCount
		j.err = outcome.Error
		j.errCode = outcome.ErrorCode
		j.result = outcome
		j.mu.Unlock()

		c.resolveFailure(ctx, j, outcome, logger)

		if retryCount >= MaxRetries {
			j.setState(schemas.JobFailure)
			logger.Error("Job failed permanently",
				zap.Int("retry_count", retryCount),
				zap.String("error_code", string(outcome.ErrorCode)))
			c.publish(j, schemas.Event{
				Level:   "ERROR",
				Message: fmt.Sprintf("Job failed permanently after %d attempts: %s", retryCount+1, outcome.Error),
				Status:  string(schemas.JobFailure),
			})
			return
		}

		// The retry count advances before the backoff so Status reports the
		// attempt the job is waiting on, not the one that just failed.
		delay := RetryDelay(retryCount)
		j.mu.Lock()
		j.retryCount++
		j.state = schemas.JobRetry
		j.mu.Unlock()

		c.publish(j, schemas.Event{
			Level:   "WARNING",
			Message: fmt.Sprintf("Job attempt failed, retrying in %s: %s", delay, outcome.Error),
			Status:  string(schemas.JobRetry),
		})
		logger.Warn("Scheduling retry",
			zap.Duration("backoff", delay),
			zap.Int("retry_count", retryCount+1))

		if err := c.sleep(ctx, delay); err != nil {
			// Shutdown or caller cancellation during backoff abandons the
			// job without a further attempt.
			j.setState(schemas.JobFailure)
			logger.Warn("Job abandoned during backoff", zap.Error(err))
			return
		}
	}
}

// attempt executes one RUNNING pass: audit record, orchestrator call.
func (c *core) attempt(ctx context.Context, j *job, logger *zap.Logger) *schemas.ExecutionOutcome {
	j.setState(schemas.JobRunning)
	c.publish(j, schemas.Event{
		Message: fmt.Sprintf("Executing goal: %s", j.req.Goal),
		Status:  string(schemas.JobRunning),
	})

	rec := c.openAuditRecord(ctx, j, logger)
	j.mu.Lock()
	j.auditID = 0
	if rec != nil {
		j.auditID = rec.ID
	}
	j.mu.Unlock()

	return c.deps.Orchestrator.ExecuteGoal(ctx, j.req.Goal, j.req.Context)
}

func (c *core) openAuditRecord(ctx context.Context, j *job, logger *zap.Logger) *schemas.AuditRecord {
	payload := map[string]any{"goal": j.req.Goal}
	if j.req.Context != nil {
		payload["context"] = j.req.Context
	}
	if j.req.PostID > 0 {
		payload["post_id"] = j.req.PostID
	}

	rec, err := c.deps.Audit.Create(ctx, j.traceID, j.req.Goal, payload, "", j.req.Platform)
	if err != nil {
		// Best effort: the job proceeds without an audit record.
		logger.Warn("Failed to open audit record", zap.Error(err))
		return nil
	}
	return rec
}

func (c *core) resolveSuccess(ctx context.Context, j *job, outcome *schemas.ExecutionOutcome, logger *zap.Logger) {
	c.updateResource(ctx, j, "published", logger)
	c.closeAuditRecord(ctx, j, schemas.AuditUpdate{
		Status: schemas.AuditSuccess,
		Result: resultPayload(outcome),
	}, logger)

	j.mu.Lock()
	j.state = schemas.JobSuccess
	j.result = outcome
	j.err = ""
	j.errCode = ""
	j.mu.Unlock()

	c.publish(j, schemas.Event{
		Message: fmt.Sprintf("Goal achieved: %s", j.req.Goal),
		Status:  string(schemas.JobSuccess),
	})
	logger.Info("Job succeeded", zap.Int("steps", len(outcome.Steps)))
}

func (c *core) resolveFailure(ctx context.Context, j *job, outcome *schemas.ExecutionOutcome, logger *zap.Logger) {
	c.updateResource(ctx, j, "failed", logger)
	c.closeAuditRecord(ctx, j, schemas.AuditUpdate{
		Status:    schemas.AuditFailed,
		Error:     outcome.Error,
		ErrorCode: outcome.ErrorCode,
	}, logger)
	c.publish(j, schemas.Event{
		Level:   "ERROR",
		Message: fmt.Sprintf("Goal execution failed: %s", outcome.Error),
		Status:  string(schemas.AuditFailed),
	})
}

func (c *core) updateResource(ctx context.Context, j *job, status string, logger *zap.Logger) {
	if j.req.PostID <= 0 || c.deps.Resources == nil {
		return
	}
	if err := c.deps.Resources.UpdateResourceStatus(ctx, j.req.PostID, status, nil); err != nil {
		logger.Warn("Failed to update post status",
			zap.Int64("post_id", j.req.PostID),
			zap.String("status", status),
			zap.Error(err))
	}
}

func (c *core) closeAuditRecord(ctx context.Context, j *job, upd schemas.AuditUpdate, logger *zap.Logger) {
	j.mu.Lock()
	auditID := j.auditID
	j.mu.Unlock()
	if auditID == 0 {
		return
	}
	if _, err := c.deps.Audit.Update(ctx, auditID, upd); err != nil {
		logger.Warn("Failed to close audit record",
			zap.Int64("audit_id", auditID),
			zap.Error(err))
	}
}

func (c *core) publish(j *job, event schemas.Event) {
	if c.deps.Events == nil {
		return
	}
	event.TraceID = j.traceID
	event.JobID = j.id
	event.PostID = j.req.PostID
	event.Platform = j.req.Platform
	c.deps.Events.Publish(event)
}

func resultPayload(outcome *schemas.ExecutionOutcome) map[string]any {
	payload := map[string]any{
		"status": string(outcome.Status),
		"steps":  len(outcome.Steps),
	}
	var screenshots []string
	for _, step := range outcome.Steps {
		if step.Screenshot != "" {
			screenshots = append(screenshots, step.Screenshot)
		}
	}
	if len(screenshots) > 0 {
		payload["screenshots"] = screenshots
	}
	return payload
}
