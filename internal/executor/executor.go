package executor

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

const defaultWaitMs = 1000

// Executor drives single actions against a page session. The session is
// acquired lazily on the first action and released exactly once by Stop,
// on both success and failure paths.
type Executor struct {
	sessions schemas.SessionManager
	logger   *zap.Logger

	mu      sync.Mutex
	session schemas.PageSession
	stopped bool
}

// New creates an Executor over the given session manager.
func New(sessions schemas.SessionManager, logger *zap.Logger) *Executor {
	return &Executor{
		sessions: sessions,
		logger:   logger.Named("executor"),
	}
}

// ensureSession starts the underlying page session on first use.
func (e *Executor) ensureSession(ctx context.Context) (schemas.PageSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil, fmt.Errorf("executor is stopped")
	}
	if e.session != nil {
		return e.session, nil
	}

	session, err := e.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire page session: %w", err)
	}
	e.session = session
	return session, nil
}

// Stop releases the page session if one was started. It is idempotent.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return nil
	}
	e.stopped = true

	if e.session == nil {
		return nil
	}
	session := e.session
	e.session = nil
	if err := session.Close(ctx); err != nil {
		return fmt.Errorf("failed to close page session: %w", err)
	}
	return nil
}

// ExecuteAction runs one action and returns its result. Failures are
// captured in the result, never raised; each result carries a UTC timestamp
// and, where applicable, an evidence reference.
func (e *Executor) ExecuteAction(ctx context.Context, action schemas.Action) schemas.ActionResult {
	result := schemas.ActionResult{
		Action:    action,
		Status:    schemas.StepSuccess,
		Timestamp: time.Now().UTC(),
	}

	session, err := e.ensureSession(ctx)
	if err != nil {
		result.Status = schemas.StepFailed
		result.Error = err.Error()
		return result
	}

	if err := e.dispatch(ctx, session, action, &result); err != nil {
		e.logger.Error("Browser action failed",
			zap.String("action_type", string(action.Type)),
			zap.String("selector", action.Selector),
			zap.Error(err))

		result.Status = schemas.StepFailed
		result.Error = err.Error()

		// Best effort: snapshot the failure state for the audit trail.
		// A secondary capture failure must not mask the original error.
		if path, capErr := session.Capture(ctx); capErr == nil {
			result.Screenshot = path
		}
	}

	return result
}

func (e *Executor) dispatch(ctx context.Context, session schemas.PageSession, action schemas.Action, result *schemas.ActionResult) error {
	switch action.Type {
	case schemas.ActionNavigate:
		return session.Navigate(ctx, action.URL)

	case schemas.ActionClick:
		return session.Click(ctx, action.Selector)

	case schemas.ActionType:
		return session.Fill(ctx, action.Selector, action.Value)

	case schemas.ActionWait:
		return session.Wait(ctx, parseWaitMs(action.Value))

	case schemas.ActionCapture:
		path, err := session.Capture(ctx)
		if err != nil {
			return err
		}
		result.Screenshot = path
		return nil

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// parseWaitMs interprets the wait action's value, defaulting when the value
// is absent or not a positive integer.
func parseWaitMs(value string) int {
	ms, err := strconv.Atoi(value)
	if err != nil || ms <= 0 {
		return defaultWaitMs
	}
	return ms
}
