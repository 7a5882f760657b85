package planner

import (
	"strings"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

// keyword sets driving the deterministic fallback plan. Order matters: the
// emitted tasks follow this sequence after the mandatory content task.
var (
	optimizeKeywords = []string{"optimize", "improve", "rewrite", "refine"}
	scheduleKeywords = []string{"schedule", "tomorrow", "time", "calendar"}
	publishKeywords  = []string{"publish", "launch", "post now"}
	monitorKeywords  = []string{"monitor", "analytics", "engagement", "comments"}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// fallbackPlan builds a rule-based plan from the goal text. It always yields
// at least two tasks: the draft-content task plus either the keyword-matched
// tasks or a generic automation task.
func fallbackPlan(goal string, goalCtx map[string]any, maxSteps int) *schemas.TaskPlan {
	goalLower := strings.ToLower(goal)

	tasks := []schemas.Task{{
		ID:         1,
		Title:      "Generate draft content",
		Goal:       "Generate a first draft aligned to the requested goal",
		ActionType: schemas.TaskGenerateContent,
		Context:    goalCtx,
	}}

	if containsAny(goalLower, optimizeKeywords) {
		tasks = append(tasks, schemas.Task{
			ID:         len(tasks) + 1,
			Title:      "Optimize message",
			Goal:       "Optimize the draft for tone, clarity, and engagement",
			ActionType: schemas.TaskOptimizeContent,
			Context:    goalCtx,
		})
	}

	if containsAny(goalLower, scheduleKeywords) {
		tasks = append(tasks, schemas.Task{
			ID:                    len(tasks) + 1,
			Title:                 "Schedule post",
			Goal:                  "Schedule the post at the best available time",
			ActionType:            schemas.TaskSchedulePost,
			Context:               goalCtx,
			RequiresHumanApproval: true,
		})
	}

	if containsAny(goalLower, publishKeywords) {
		tasks = append(tasks, schemas.Task{
			ID:                    len(tasks) + 1,
			Title:                 "Publish post",
			Goal:                  "Publish the prepared post through automation",
			ActionType:            schemas.TaskPublishPost,
			Context:               goalCtx,
			RequiresHumanApproval: true,
		})
	}

	if containsAny(goalLower, monitorKeywords) {
		tasks = append(tasks, schemas.Task{
			ID:         len(tasks) + 1,
			Title:      "Monitor engagement",
			Goal:       "Collect and summarize engagement after publishing",
			ActionType: schemas.TaskMonitorEngagement,
			Context:    goalCtx,
		})
	}

	// No keyword matched: the plan still needs an executable step.
	if len(tasks) == 1 {
		tasks = append(tasks, schemas.Task{
			ID:                    2,
			Title:                 "Execute automation",
			Goal:                  goal,
			ActionType:            schemas.TaskRunAutomation,
			Context:               goalCtx,
			RequiresHumanApproval: true,
		})
	}

	if len(tasks) > maxSteps {
		tasks = tasks[:maxSteps]
	}

	return &schemas.TaskPlan{
		Summary: "Generated fallback execution plan based on local heuristics.",
		Source:  schemas.PlanSourceFallback,
		Tasks:   tasks,
	}
}
