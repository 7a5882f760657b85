package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/config"
)

// Planner turns a natural-language goal into an executable plan. Multi-step
// task plans never fail: any model problem falls back to a deterministic
// rule-based plan. Single-goal action plans do surface model errors, so the
// orchestrator can report planning failures.
type Planner struct {
	cfg    config.PlannerConfig
	logger *zap.Logger
	llm    schemas.LLMClient
}

// New creates a Planner backed by the given LLM client.
func New(cfg config.PlannerConfig, llm schemas.LLMClient, logger *zap.Logger) *Planner {
	return &Planner{
		cfg:    cfg,
		logger: logger.Named("planner"),
		llm:    llm,
	}
}

var jsonBlockRegex = regexp.MustCompile("(?s)(?:```json\\s*|```\\s*|)(\\{.*\\})(?:```|)")

// stripCodeFences extracts the JSON object from a model response that may be
// wrapped in markdown code fences.
func stripCodeFences(response string) string {
	response = strings.TrimSpace(response)
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		return matches[1]
	}
	return response
}

// -- Multi-step task planning --

// GeneratePlan builds an ordered task plan for a high-level goal. It never
// returns an error and never returns an empty task list; malformed model
// output or transport failures produce a fallback plan.
func (p *Planner) GeneratePlan(ctx context.Context, goal string, goalCtx map[string]any, maxSteps int) *schemas.TaskPlan {
	maxSteps = clampSteps(maxSteps)
	if goalCtx == nil {
		goalCtx = map[string]any{}
	}

	plan, err := p.modelPlan(ctx, goal, goalCtx, maxSteps)
	if err != nil {
		p.logger.Warn("Model planning failed, using fallback plan",
			zap.String("goal", goal), zap.Error(err))
		return fallbackPlan(goal, goalCtx, maxSteps)
	}
	return plan
}

func (p *Planner) modelPlan(ctx context.Context, goal string, goalCtx map[string]any, maxSteps int) (*schemas.TaskPlan, error) {
	contextJSON, err := json.MarshalToString(goalCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal goal context: %w", err)
	}

	response, err := p.llm.GenerateResponse(ctx, schemas.GenerationRequest{
		UserPrompt: taskPrompt(goal, contextJSON, maxSteps),
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm generation failed: %w", err)
	}

	var payload struct {
		Summary string           `json:"summary"`
		Tasks   []map[string]any `json:"tasks"`
	}
	if err := json.UnmarshalFromString(stripCodeFences(response), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan response: %w", err)
	}
	if len(payload.Tasks) == 0 {
		return nil, fmt.Errorf("planner response missing tasks array")
	}

	summary := payload.Summary
	if summary == "" {
		summary = "Generated execution plan."
	}

	return &schemas.TaskPlan{
		Summary: summary,
		Source:  schemas.PlanSourceModel,
		Tasks:   normalizeTasks(payload.Tasks, maxSteps),
	}, nil
}

// normalizeTasks truncates to maxSteps and fills required fields so every
// task carries an id, title, goal, action type and context.
func normalizeTasks(raw []map[string]any, maxSteps int) []schemas.Task {
	if len(raw) > maxSteps {
		raw = raw[:maxSteps]
	}

	tasks := make([]schemas.Task, 0, len(raw))
	for i, entry := range raw {
		id := i + 1
		title := stringField(entry, "title")
		if title == "" {
			title = fmt.Sprintf("Step %d", id)
		}
		goal := stringField(entry, "goal")
		if goal == "" {
			goal = title
		}
		if goal == "" {
			goal = "Execute automation step"
		}
		actionType := stringField(entry, "action_type")
		if !knownTaskType(actionType) {
			actionType = schemas.TaskRunAutomation
		}
		taskCtx, _ := entry["context"].(map[string]any)
		if taskCtx == nil {
			taskCtx = map[string]any{}
		}
		approval, _ := entry["requires_human_approval"].(bool)

		tasks = append(tasks, schemas.Task{
			ID:                    id,
			Title:                 title,
			Goal:                  goal,
			ActionType:            actionType,
			Context:               taskCtx,
			RequiresHumanApproval: approval,
		})
	}
	return tasks
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func knownTaskType(t string) bool {
	switch t {
	case schemas.TaskGenerateContent, schemas.TaskOptimizeContent, schemas.TaskSchedulePost,
		schemas.TaskPublishPost, schemas.TaskMonitorEngagement, schemas.TaskRunAutomation:
		return true
	}
	return false
}

func clampSteps(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}
