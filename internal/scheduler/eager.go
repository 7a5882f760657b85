package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/config"
)

// Eager executes each job synchronously inside Submit, retries included.
// It is the fallback for environments without background worker capacity:
// the one-shot CLI run, or a deployment whose queue backend is absent.
type Eager struct {
	*core
}

var _ Scheduler = (*Eager)(nil)

func NewEager(deps Deps, logger *zap.Logger) *Eager {
	return &Eager{core: newCore(deps, logger.Named("scheduler"))}
}

// Submit runs the job to a terminal state before returning. The returned id
// always refers to a finished job.
func (e *Eager) Submit(ctx context.Context, req schemas.JobRequest) (string, error) {
	j := e.register(req)
	e.runJob(ctx, j)
	return j.id, nil
}

func (e *Eager) Status(jobID string) (*schemas.JobStatus, error) {
	return e.status(jobID)
}

func (e *Eager) Shutdown(context.Context) error {
	return nil
}

// New builds the scheduler selected by configuration.
func New(cfg config.SchedulerConfig, deps Deps, logger *zap.Logger) Scheduler {
	if cfg.Backend == config.BackendEager {
		return NewEager(deps, logger)
	}
	return NewPool(cfg, deps, logger)
}
