package schemas

// -- Planning Task Schemas --

// Task is a planner-level unit of work. Unlike an Action, a task expands into
// its own goal execution (or awaits a human sign-off) rather than a single
// browser step.
type Task struct {
	ID                    int            `json:"id"`
	Title                 string         `json:"title"`
	Goal                  string         `json:"goal"`
	ActionType            string         `json:"action_type"`
	Context               map[string]any `json:"context"`
	RequiresHumanApproval bool           `json:"requires_human_approval"`
}

// TaskPlan is the planner's multi-step output: {"summary","tasks":[...]}.
// The JSON shape is a compatibility contract with downstream consumers.
type TaskPlan struct {
	Summary string     `json:"summary"`
	Source  PlanSource `json:"source"`
	Tasks   []Task     `json:"tasks"`
}

// Known task action types emitted by the planner. Unrecognized values are
// normalized to TaskRunAutomation.
const (
	TaskGenerateContent   = "generate_content"
	TaskOptimizeContent   = "optimize_content"
	TaskSchedulePost      = "schedule_post"
	TaskPublishPost       = "publish_post"
	TaskMonitorEngagement = "monitor_engagement"
	TaskRunAutomation     = "run_automation"
)
