package schemas

import (
	"strings"
	"time"
)

// -- Action Schemas --

// ActionKind identifies one atomic browser automation step.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionClick    ActionKind = "click"
	ActionType     ActionKind = "type"
	ActionWait     ActionKind = "wait"
	// ActionCapture is serialized as "screenshot" on the wire. The JSON name
	// is part of the plan schema contract and must not change.
	ActionCapture ActionKind = "screenshot"
)

// ValidActionKinds is the closed set accepted by plan validation.
var ValidActionKinds = map[ActionKind]bool{
	ActionNavigate: true,
	ActionClick:    true,
	ActionType:     true,
	ActionWait:     true,
	ActionCapture:  true,
}

// Action is a single automation step produced by the planner. Actions are
// immutable once created; execution order is the slice order.
type Action struct {
	Type     ActionKind `json:"type"`
	Selector string     `json:"selector,omitempty"`
	Value    string     `json:"value,omitempty"`
	URL      string     `json:"url,omitempty"`
}

// PlanSource records where a plan came from.
type PlanSource string

const (
	PlanSourceModel    PlanSource = "model"
	PlanSourceFallback PlanSource = "fallback"
)

// ActionPlan is the wire shape returned by the model for single-goal
// automation: {"actions":[...]}.
type ActionPlan struct {
	Actions []Action `json:"actions"`
}

// -- Execution Result Schemas --

// StepStatus is the outcome of one executed action.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// ActionResult records the outcome of one executed Action. Results are
// appended to the running outcome and never mutated afterwards.
type ActionResult struct {
	Action     Action     `json:"action"`
	Status     StepStatus `json:"status"`
	Timestamp  time.Time  `json:"timestamp"`
	Screenshot string     `json:"screenshot,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ExecutionOutcome is the result of running a full action plan for one goal.
type ExecutionOutcome struct {
	Goal      string         `json:"goal"`
	Status    StepStatus     `json:"status"`
	Steps     []ActionResult `json:"steps"`
	Error     string         `json:"error,omitempty"`
	ErrorCode ErrorCode      `json:"error_code,omitempty"`
}

// Succeeded reports whether the outcome is terminal success.
func (o *ExecutionOutcome) Succeeded() bool {
	return o.Status == StepSuccess
}

// -- Error Classification --

// ErrorCode is the closed taxonomy for execution failures.
type ErrorCode string

const (
	ErrTimeout          ErrorCode = "TIMEOUT"
	ErrSelectorNotFound ErrorCode = "SELECTOR_NOT_FOUND"
	ErrAuthFailed       ErrorCode = "AUTH_FAILED"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrSystem           ErrorCode = "SYSTEM_ERROR"
)

// classifyRule pairs a keyword set with the code it maps to. Rules are
// evaluated top to bottom; the first match wins.
type classifyRule struct {
	keywords []string
	code     ErrorCode
}

var classifyRules = []classifyRule{
	{keywords: []string{"timeout"}, code: ErrTimeout},
	{keywords: []string{"selector"}, code: ErrSelectorNotFound},
	{keywords: []string{"auth", "login"}, code: ErrAuthFailed},
	{keywords: []string{"rate", "limit"}, code: ErrRateLimited},
}

// ClassifyError maps a raw failure message onto an ErrorCode by substring
// matching. Matching is case-insensitive and defaults to SYSTEM_ERROR.
func ClassifyError(msg string) ErrorCode {
	lowered := strings.ToLower(msg)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.code
			}
		}
	}
	return ErrSystem
}
