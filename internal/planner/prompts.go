package planner

import "fmt"

const actionSystemPrompt = "You are an autonomous agent utilizing a browser to achieve user goals."

// actionPrompt instructs the model to return the single-goal action plan.
// The schema text is part of the wire contract with the model and mirrors
// the plan JSON consumed downstream.
func actionPrompt(goal, contextJSON string) string {
	return fmt.Sprintf(`Goal: %s
Context: %s

Task: Return a JSON object with a list of actions to achieve the goal.
Schema:
{
    "actions": [
        {
            "type": "navigate" | "click" | "type" | "wait" | "screenshot",
            "selector": "css_selector" (optional),
            "value": "string_value" (optional),
            "url": "full_url" (optional)
        }
    ]
}
IMPORTANT: Return valid JSON only.`, goal, contextJSON)
}

// taskPrompt instructs the model to return the multi-step task plan.
func taskPrompt(goal, contextJSON string, maxSteps int) string {
	return fmt.Sprintf(`Goal: %s
Context: %s

Create an actionable plan with up to %d steps.
Return strict JSON only:
{
  "summary": "brief plan summary",
  "tasks": [
    {
      "title": "short title",
      "goal": "clear executable goal",
      "action_type": "generate_content|optimize_content|schedule_post|publish_post|monitor_engagement|run_automation",
      "context": {},
      "requires_human_approval": false
    }
  ]
}`, goal, contextJSON, maxSteps)
}
