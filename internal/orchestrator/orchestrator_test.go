package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

// fakePlanner returns scripted actions or an error.
type fakePlanner struct {
	actions []schemas.Action
	err     error
}

func (f *fakePlanner) GenerateActions(context.Context, string, map[string]any) ([]schemas.Action, error) {
	return f.actions, f.err
}

// fakeRunner fails at a configured step index (-1 for never).
type fakeRunner struct {
	failAt    int
	failError string
	executed  int
	stops     int
	stopErr   error
}

func (f *fakeRunner) ExecuteAction(_ context.Context, action schemas.Action) schemas.ActionResult {
	idx := f.executed
	f.executed++
	result := schemas.ActionResult{
		Action:    action,
		Status:    schemas.StepSuccess,
		Timestamp: time.Now().UTC(),
	}
	if f.failAt >= 0 && idx == f.failAt {
		result.Status = schemas.StepFailed
		result.Error = f.failError
	}
	return result
}

func (f *fakeRunner) Stop(context.Context) error {
	f.stops++
	return f.stopErr
}

func planOf(n int) []schemas.Action {
	actions := make([]schemas.Action, n)
	for i := range actions {
		actions[i] = schemas.Action{Type: schemas.ActionWait, Value: fmt.Sprintf("%d", i+1)}
	}
	return actions
}

func newTestOrchestrator(planner ActionPlanner, runner *fakeRunner) *Orchestrator {
	o := New(planner, nil, zap.NewNop())
	o.newRunner = func() ActionRunner { return runner }
	return o
}

func TestExecuteGoalSuccess(t *testing.T) {
	runner := &fakeRunner{failAt: -1}
	o := newTestOrchestrator(&fakePlanner{actions: planOf(3)}, runner)

	outcome := o.ExecuteGoal(context.Background(), "publish", nil)

	assert.Equal(t, schemas.StepSuccess, outcome.Status)
	assert.Len(t, outcome.Steps, 3)
	assert.Empty(t, outcome.Error)
	assert.Empty(t, outcome.ErrorCode)
	assert.Equal(t, 1, runner.stops, "session must be released")
}

func TestExecuteGoalPlanningFailure(t *testing.T) {
	runner := &fakeRunner{failAt: -1}
	o := newTestOrchestrator(&fakePlanner{err: errors.New("model unreachable")}, runner)

	outcome := o.ExecuteGoal(context.Background(), "publish", nil)

	assert.Equal(t, schemas.StepFailed, outcome.Status)
	assert.Equal(t, "Planning failed: model unreachable", outcome.Error)
	assert.Equal(t, schemas.ErrSystem, outcome.ErrorCode)
	assert.Empty(t, outcome.Steps, "no actions may be attempted after a planning failure")
	assert.Equal(t, 0, runner.executed)
	assert.Equal(t, 0, runner.stops, "no session is acquired for a failed plan")
}

func TestExecuteGoalFailFast(t *testing.T) {
	runner := &fakeRunner{failAt: 1, failError: "selector not found: #publish"}
	o := newTestOrchestrator(&fakePlanner{actions: planOf(5)}, runner)

	outcome := o.ExecuteGoal(context.Background(), "publish", nil)

	assert.Equal(t, schemas.StepFailed, outcome.Status)
	// Steps reflect exactly the attempted actions: the successful first one
	// plus the failed second. Nothing runs after the failure.
	require.Len(t, outcome.Steps, 2)
	assert.Equal(t, schemas.StepSuccess, outcome.Steps[0].Status)
	assert.Equal(t, schemas.StepFailed, outcome.Steps[1].Status)
	assert.Equal(t, 2, runner.executed)

	assert.Equal(t, schemas.ErrSelectorNotFound, outcome.ErrorCode)
	assert.Contains(t, outcome.Error, "Action failed:")
	assert.Equal(t, 1, runner.stops, "session must be released on the failure path")
}

func TestExecuteGoalClassification(t *testing.T) {
	cases := []struct {
		errMsg string
		want   schemas.ErrorCode
	}{
		{"navigation timeout after 30s", schemas.ErrTimeout},
		{"selector not found: #x", schemas.ErrSelectorNotFound},
		{"auth token expired", schemas.ErrAuthFailed},
		{"rate limit exceeded", schemas.ErrRateLimited},
		{"disk full", schemas.ErrSystem},
	}

	for _, tc := range cases {
		runner := &fakeRunner{failAt: 0, failError: tc.errMsg}
		o := newTestOrchestrator(&fakePlanner{actions: planOf(1)}, runner)
		outcome := o.ExecuteGoal(context.Background(), "goal", nil)
		assert.Equal(t, tc.want, outcome.ErrorCode, "message %q", tc.errMsg)
	}
}

func TestExecuteGoalStepsBounded(t *testing.T) {
	// Steps length equals plan length iff no step failed before the last.
	for failAt := -1; failAt < 4; failAt++ {
		runner := &fakeRunner{failAt: failAt, failError: "boom"}
		o := newTestOrchestrator(&fakePlanner{actions: planOf(4)}, runner)
		outcome := o.ExecuteGoal(context.Background(), "goal", nil)

		assert.LessOrEqual(t, len(outcome.Steps), 4)
		if failAt == -1 {
			assert.Len(t, outcome.Steps, 4)
		} else {
			assert.Len(t, outcome.Steps, failAt+1)
		}
	}
}

func TestExecutePlanPrebuiltActions(t *testing.T) {
	runner := &fakeRunner{failAt: -1}
	o := newTestOrchestrator(&fakePlanner{err: errors.New("planner must not be called")}, runner)

	outcome := o.ExecutePlan(context.Background(), "goal", planOf(2))
	assert.Equal(t, schemas.StepSuccess, outcome.Status)
	assert.Len(t, outcome.Steps, 2)
}

func TestExecutePlanEmpty(t *testing.T) {
	runner := &fakeRunner{failAt: -1}
	o := newTestOrchestrator(&fakePlanner{}, runner)

	outcome := o.ExecutePlan(context.Background(), "goal", nil)
	assert.Equal(t, schemas.StepFailed, outcome.Status)
	assert.Equal(t, schemas.ErrSystem, outcome.ErrorCode)
	assert.Equal(t, 0, runner.stops)
}

func TestExecuteGoalDemoFabricatesResults(t *testing.T) {
	actions := []schemas.Action{
		{Type: schemas.ActionNavigate, URL: "https://example.com"},
		{Type: schemas.ActionType, Selector: "#content", Value: "hi"},
		{Type: schemas.ActionCapture},
	}
	o := NewDemo(&fakePlanner{actions: actions}, zap.NewNop())

	outcome := o.ExecuteGoal(context.Background(), "publish", nil)

	// Every planned action resolves as a synthetic success; no browser
	// session is involved.
	assert.Equal(t, schemas.StepSuccess, outcome.Status)
	require.Len(t, outcome.Steps, 3)
	for _, step := range outcome.Steps {
		assert.Equal(t, schemas.StepSuccess, step.Status)
		assert.False(t, step.Timestamp.IsZero())
	}
	assert.Empty(t, outcome.Steps[0].Screenshot)
	assert.Equal(t, "demo_evidence.png", outcome.Steps[2].Screenshot)
}

func TestSessionReleasedEvenIfStopFails(t *testing.T) {
	runner := &fakeRunner{failAt: -1, stopErr: errors.New("close hung")}
	o := newTestOrchestrator(&fakePlanner{actions: planOf(1)}, runner)

	outcome := o.ExecuteGoal(context.Background(), "goal", nil)
	assert.Equal(t, schemas.StepSuccess, outcome.Status, "a stop failure does not fail the outcome")
	assert.Equal(t, 1, runner.stops)
}
