package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

// fakeSession records calls and returns scripted errors per method.
type fakeSession struct {
	calls       []string
	navigateErr error
	clickErr    error
	fillErr     error
	waitErr     error
	captureErr  error
	capturePath string
	waitedMs    []int
	closed      int
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.calls = append(f.calls, "navigate:"+url)
	return f.navigateErr
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	f.calls = append(f.calls, "click:"+selector)
	return f.clickErr
}

func (f *fakeSession) Fill(_ context.Context, selector, value string) error {
	f.calls = append(f.calls, "fill:"+selector+"="+value)
	return f.fillErr
}

func (f *fakeSession) Wait(_ context.Context, ms int) error {
	f.calls = append(f.calls, "wait")
	f.waitedMs = append(f.waitedMs, ms)
	return f.waitErr
}

func (f *fakeSession) Capture(context.Context) (string, error) {
	f.calls = append(f.calls, "capture")
	if f.captureErr != nil {
		return "", f.captureErr
	}
	if f.capturePath == "" {
		return "evidence/shot.png", nil
	}
	return f.capturePath, nil
}

func (f *fakeSession) Close(context.Context) error {
	f.closed++
	return nil
}

type fakeManager struct {
	session   *fakeSession
	newErr    error
	newCalls  int
	shutdowns int
}

func (f *fakeManager) NewSession(context.Context) (schemas.PageSession, error) {
	f.newCalls++
	if f.newErr != nil {
		return nil, f.newErr
	}
	return f.session, nil
}

func (f *fakeManager) Shutdown(context.Context) error {
	f.shutdowns++
	return nil
}

func newTestExecutor(session *fakeSession) (*Executor, *fakeManager) {
	mgr := &fakeManager{session: session}
	return New(mgr, zap.NewNop()), mgr
}

func TestExecuteActionDispatch(t *testing.T) {
	session := &fakeSession{}
	exec, _ := newTestExecutor(session)
	ctx := context.Background()

	actions := []schemas.Action{
		{Type: schemas.ActionNavigate, URL: "https://example.com"},
		{Type: schemas.ActionType, Selector: "#content", Value: "Hello"},
		{Type: schemas.ActionClick, Selector: "#publish"},
		{Type: schemas.ActionWait, Value: "250"},
		{Type: schemas.ActionCapture},
	}

	for _, a := range actions {
		result := exec.ExecuteAction(ctx, a)
		assert.Equal(t, schemas.StepSuccess, result.Status)
		assert.False(t, result.Timestamp.IsZero())
	}

	assert.Equal(t, []string{
		"navigate:https://example.com",
		"fill:#content=Hello",
		"click:#publish",
		"wait",
		"capture",
	}, session.calls)
	assert.Equal(t, []int{250}, session.waitedMs)
}

func TestExecuteActionLazySessionStart(t *testing.T) {
	session := &fakeSession{}
	exec, mgr := newTestExecutor(session)
	ctx := context.Background()

	assert.Equal(t, 0, mgr.newCalls)
	exec.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionWait, Value: "1"})
	exec.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionWait, Value: "1"})
	assert.Equal(t, 1, mgr.newCalls, "session must be acquired once, on first use")
}

func TestExecuteActionSessionAcquisitionFailure(t *testing.T) {
	mgr := &fakeManager{newErr: errors.New("browser down")}
	exec := New(mgr, zap.NewNop())

	result := exec.ExecuteAction(context.Background(), schemas.Action{Type: schemas.ActionCapture})
	assert.Equal(t, schemas.StepFailed, result.Status)
	assert.Contains(t, result.Error, "browser down")
}

func TestExecuteActionFailureCapturesEvidence(t *testing.T) {
	session := &fakeSession{clickErr: errors.New("selector not found: #publish"), capturePath: "evidence/error.png"}
	exec, _ := newTestExecutor(session)

	result := exec.ExecuteAction(context.Background(), schemas.Action{Type: schemas.ActionClick, Selector: "#publish"})

	assert.Equal(t, schemas.StepFailed, result.Status)
	assert.Contains(t, result.Error, "selector not found")
	assert.Equal(t, "evidence/error.png", result.Screenshot)
}

func TestExecuteActionFailureSwallowsSecondaryCaptureError(t *testing.T) {
	session := &fakeSession{
		navigateErr: errors.New("navigation timeout after 30s"),
		captureErr:  errors.New("tab gone"),
	}
	exec, _ := newTestExecutor(session)

	result := exec.ExecuteAction(context.Background(), schemas.Action{Type: schemas.ActionNavigate, URL: "https://x"})

	assert.Equal(t, schemas.StepFailed, result.Status)
	assert.Contains(t, result.Error, "timeout")
	assert.Empty(t, result.Screenshot)
}

func TestExecuteActionWaitDefault(t *testing.T) {
	session := &fakeSession{}
	exec, _ := newTestExecutor(session)
	ctx := context.Background()

	exec.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionWait})
	exec.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionWait, Value: "not-a-number"})
	exec.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionWait, Value: "-5"})

	assert.Equal(t, []int{1000, 1000, 1000}, session.waitedMs)
}

func TestExecuteActionUnknownType(t *testing.T) {
	session := &fakeSession{}
	exec, _ := newTestExecutor(session)

	result := exec.ExecuteAction(context.Background(), schemas.Action{Type: "hover"})
	assert.Equal(t, schemas.StepFailed, result.Status)
	assert.Contains(t, result.Error, "unknown action type")
}

func TestStopIdempotent(t *testing.T) {
	session := &fakeSession{}
	exec, _ := newTestExecutor(session)
	ctx := context.Background()

	exec.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionWait, Value: "1"})

	require.NoError(t, exec.Stop(ctx))
	require.NoError(t, exec.Stop(ctx))
	assert.Equal(t, 1, session.closed, "session must be released exactly once")

	// A stopped executor refuses further actions.
	result := exec.ExecuteAction(ctx, schemas.Action{Type: schemas.ActionWait, Value: "1"})
	assert.Equal(t, schemas.StepFailed, result.Status)
}

func TestStopWithoutSession(t *testing.T) {
	exec, mgr := newTestExecutor(&fakeSession{})
	require.NoError(t, exec.Stop(context.Background()))
	assert.Equal(t, 0, mgr.newCalls)
}
