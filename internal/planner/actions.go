package planner

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
)

// GenerateActions asks the model for a single-goal browser action plan.
// Unlike GeneratePlan there is no fallback: an unusable model response is an
// error the caller reports as a planning failure.
func (p *Planner) GenerateActions(ctx context.Context, goal string, goalCtx map[string]any) ([]schemas.Action, error) {
	if p.cfg.DemoMode {
		return demoActions(goal, goalCtx), nil
	}

	contextJSON, err := json.MarshalToString(goalCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal goal context: %w", err)
	}

	response, err := p.llm.GenerateResponse(ctx, schemas.GenerationRequest{
		SystemPrompt: actionSystemPrompt,
		UserPrompt:   actionPrompt(goal, contextJSON),
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			MaxTokens:       2048,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm generation failed: %w", err)
	}

	var plan schemas.ActionPlan
	if err := json.UnmarshalFromString(stripCodeFences(response), &plan); err != nil {
		p.logger.Warn("Failed to unmarshal action plan", zap.String("raw_response", response), zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal action plan: %w", err)
	}

	if err := validateActions(plan.Actions); err != nil {
		return nil, err
	}
	return plan.Actions, nil
}

// validateActions enforces the plan schema: a non-empty list whose entries
// all carry a known action type.
func validateActions(actions []schemas.Action) error {
	if len(actions) == 0 {
		return fmt.Errorf("action plan contains no actions")
	}
	for i, a := range actions {
		if a.Type == "" {
			return fmt.Errorf("action %d missing required 'type' field", i)
		}
		if !schemas.ValidActionKinds[a.Type] {
			return fmt.Errorf("action %d has unknown type %q", i, a.Type)
		}
	}
	return nil
}

// demoActions is the deterministic plan used when demo mode is enabled. It
// exercises every interaction kind against a stand-in publisher page.
func demoActions(goal string, goalCtx map[string]any) []schemas.Action {
	content, _ := goalCtx["content"].(string)
	if content == "" {
		content = fmt.Sprintf("Demo automation for: %s", goal)
	}
	if len(content) > 280 {
		content = content[:280]
	}

	return []schemas.Action{
		{Type: schemas.ActionNavigate, URL: "https://example.com/demo-social-publisher"},
		{Type: schemas.ActionType, Selector: "#content", Value: content},
		{Type: schemas.ActionClick, Selector: "#publish"},
		{Type: schemas.ActionCapture},
	}
}
