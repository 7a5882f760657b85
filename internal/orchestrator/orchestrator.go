package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/executor"
)

// ActionPlanner produces the ordered action list for a single goal.
type ActionPlanner interface {
	GenerateActions(ctx context.Context, goal string, goalCtx map[string]any) ([]schemas.Action, error)
}

// ActionRunner executes single actions and owns the session lifecycle.
type ActionRunner interface {
	ExecuteAction(ctx context.Context, action schemas.Action) schemas.ActionResult
	Stop(ctx context.Context) error
}

// Orchestrator runs one goal end to end: plan, execute actions strictly in
// order with fail-fast semantics, and classify the failure if any. The
// outcome's step list always reflects exactly the actions attempted, in
// attempt order, so callers can replay the sequence for audit purposes.
type Orchestrator struct {
	planner  ActionPlanner
	sessions schemas.SessionManager
	logger   *zap.Logger

	// newRunner builds a fresh runner per invocation so each execution owns
	// its session exclusively. Overridable in tests.
	newRunner func() ActionRunner
}

var _ schemas.Orchestrator = (*Orchestrator)(nil)

// New creates an Orchestrator.
func New(planner ActionPlanner, sessions schemas.SessionManager, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		planner:  planner,
		sessions: sessions,
		logger:   logger.Named("orchestrator"),
	}
	o.newRunner = func() ActionRunner {
		return executor.New(sessions, logger)
	}
	return o
}

// NewDemo creates an Orchestrator that plans normally but fabricates
// successful results instead of driving a browser. No session manager is
// needed, so demo runs work on hosts without Chrome.
func NewDemo(planner ActionPlanner, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		planner: planner,
		logger:  logger.Named("orchestrator"),
	}
	o.newRunner = func() ActionRunner { return demoRunner{} }
	return o
}

// demoRunner reports every action as succeeded without touching a browser.
type demoRunner struct{}

func (demoRunner) ExecuteAction(_ context.Context, action schemas.Action) schemas.ActionResult {
	result := schemas.ActionResult{
		Action:    action,
		Status:    schemas.StepSuccess,
		Timestamp: time.Now().UTC(),
	}
	if action.Type == schemas.ActionCapture {
		result.Screenshot = "demo_evidence.png"
	}
	return result
}

func (demoRunner) Stop(context.Context) error { return nil }

// ExecuteGoal plans and executes a goal. It never returns an error; all
// failure modes are captured in the outcome.
func (o *Orchestrator) ExecuteGoal(ctx context.Context, goal string, goalCtx map[string]any) *schemas.ExecutionOutcome {
	outcome := &schemas.ExecutionOutcome{
		Goal:  goal,
		Steps: []schemas.ActionResult{},
	}

	actions, err := o.planner.GenerateActions(ctx, goal, goalCtx)
	if err != nil {
		o.logger.Error("Planning failed, no actions attempted", zap.String("goal", goal), zap.Error(err))
		outcome.Status = schemas.StepFailed
		outcome.Error = fmt.Sprintf("Planning failed: %s", err)
		outcome.ErrorCode = schemas.ErrSystem
		return outcome
	}

	o.runActions(ctx, actions, outcome)
	return outcome
}

// ExecutePlan runs pre-built actions for flows that already hold a plan.
func (o *Orchestrator) ExecutePlan(ctx context.Context, goal string, actions []schemas.Action) *schemas.ExecutionOutcome {
	outcome := &schemas.ExecutionOutcome{
		Goal:  goal,
		Steps: []schemas.ActionResult{},
	}
	if len(actions) == 0 {
		outcome.Status = schemas.StepFailed
		outcome.Error = "Planning failed: plan contains no actions"
		outcome.ErrorCode = schemas.ErrSystem
		return outcome
	}
	o.runActions(ctx, actions, outcome)
	return outcome
}

// runActions executes actions strictly sequentially, halting on the first
// failure. The runner's session is released unconditionally.
func (o *Orchestrator) runActions(ctx context.Context, actions []schemas.Action, outcome *schemas.ExecutionOutcome) {
	runner := o.newRunner()
	defer func() {
		if err := runner.Stop(ctx); err != nil {
			o.logger.Error("Failed to release page session", zap.Error(err))
		}
	}()

	for _, action := range actions {
		result := runner.ExecuteAction(ctx, action)
		outcome.Steps = append(outcome.Steps, result)

		if result.Status == schemas.StepFailed {
			outcome.Status = schemas.StepFailed
			outcome.Error = fmt.Sprintf("Action failed: %s", result.Error)
			outcome.ErrorCode = schemas.ClassifyError(result.Error)
			o.logger.Warn("Goal execution halted on failed action",
				zap.String("goal", outcome.Goal),
				zap.String("action_type", string(action.Type)),
				zap.String("error_code", string(outcome.ErrorCode)),
				zap.Int("steps_attempted", len(outcome.Steps)))
			return
		}
	}

	outcome.Status = schemas.StepSuccess
}
