package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hkanersen/autopub-cli/api/schemas"
	"github.com/hkanersen/autopub-cli/internal/config"
)

// fakeLLM returns a canned response or error for every request.
type fakeLLM struct {
	response string
	err      error
	requests []schemas.GenerationRequest
}

func (f *fakeLLM) GenerateResponse(_ context.Context, req schemas.GenerationRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestPlanner(llm schemas.LLMClient) *Planner {
	return New(config.PlannerConfig{MaxSteps: 5}, llm, zap.NewNop())
}

func TestGeneratePlanFromModel(t *testing.T) {
	llm := &fakeLLM{response: `{
		"summary": "Two step plan",
		"tasks": [
			{"title": "Draft", "goal": "Write the draft", "action_type": "generate_content"},
			{"title": "Publish", "goal": "Publish it", "action_type": "publish_post", "requires_human_approval": true}
		]
	}`}

	plan := newTestPlanner(llm).GeneratePlan(context.Background(), "publish my update", nil, 5)

	assert.Equal(t, schemas.PlanSourceModel, plan.Source)
	assert.Equal(t, "Two step plan", plan.Summary)
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, 1, plan.Tasks[0].ID)
	assert.Equal(t, 2, plan.Tasks[1].ID)
	assert.True(t, plan.Tasks[1].RequiresHumanApproval)
}

func TestGeneratePlanStripsCodeFences(t *testing.T) {
	llm := &fakeLLM{response: "```json\n{\"summary\":\"s\",\"tasks\":[{\"title\":\"Draft\"}]}\n```"}

	plan := newTestPlanner(llm).GeneratePlan(context.Background(), "anything", nil, 5)

	assert.Equal(t, schemas.PlanSourceModel, plan.Source)
	require.Len(t, plan.Tasks, 1)
	assert.Equal(t, "Draft", plan.Tasks[0].Title)
	// Missing goal falls back to the title; unknown type normalizes.
	assert.Equal(t, "Draft", plan.Tasks[0].Goal)
	assert.Equal(t, schemas.TaskRunAutomation, plan.Tasks[0].ActionType)
	assert.NotNil(t, plan.Tasks[0].Context)
}

func TestGeneratePlanFallsBackOnModelError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("bedrock unreachable")}

	plan := newTestPlanner(llm).GeneratePlan(context.Background(), "Publish content to LinkedIn",
		map[string]any{"content": "Hello", "platform": "linkedin", "post_id": 42}, 5)

	assert.Equal(t, schemas.PlanSourceFallback, plan.Source)
	require.NotEmpty(t, plan.Tasks)
	assert.Equal(t, schemas.TaskGenerateContent, plan.Tasks[0].ActionType)

	// "publish" in the goal adds a publish task at id 2 requiring approval.
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, 2, plan.Tasks[1].ID)
	assert.Equal(t, schemas.TaskPublishPost, plan.Tasks[1].ActionType)
	assert.True(t, plan.Tasks[1].RequiresHumanApproval)
}

func TestGeneratePlanFallsBackOnMalformedJSON(t *testing.T) {
	llm := &fakeLLM{response: "sure! here is your plan:"}
	plan := newTestPlanner(llm).GeneratePlan(context.Background(), "optimize and publish this", nil, 5)

	assert.Equal(t, schemas.PlanSourceFallback, plan.Source)
	types := make([]string, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		types = append(types, task.ActionType)
	}
	assert.Equal(t, []string{
		schemas.TaskGenerateContent,
		schemas.TaskOptimizeContent,
		schemas.TaskPublishPost,
	}, types)
}

func TestGeneratePlanFallsBackOnEmptyTasks(t *testing.T) {
	llm := &fakeLLM{response: `{"summary":"empty","tasks":[]}`}
	plan := newTestPlanner(llm).GeneratePlan(context.Background(), "", nil, 5)

	assert.Equal(t, schemas.PlanSourceFallback, plan.Source)
	// Empty goal matches no keywords: generic automation task follows the
	// content task.
	require.Len(t, plan.Tasks, 2)
	assert.Equal(t, schemas.TaskRunAutomation, plan.Tasks[1].ActionType)
	assert.True(t, plan.Tasks[1].RequiresHumanApproval)
}

func TestGeneratePlanNeverEmpty(t *testing.T) {
	goals := []string{"", "publish", "schedule for tomorrow", "monitor comments", "do something odd"}
	for _, goal := range goals {
		plan := newTestPlanner(&fakeLLM{err: errors.New("down")}).GeneratePlan(context.Background(), goal, nil, 5)
		assert.NotEmpty(t, plan.Tasks, "goal %q", goal)
	}
}

func TestGeneratePlanTruncatesToMaxSteps(t *testing.T) {
	llm := &fakeLLM{err: errors.New("down")}
	plan := newTestPlanner(llm).GeneratePlan(context.Background(),
		"optimize, schedule, publish and monitor engagement", nil, 3)

	assert.Len(t, plan.Tasks, 3)
	for i, task := range plan.Tasks {
		assert.Equal(t, i+1, task.ID)
	}
}

func TestGeneratePlanClampsMaxSteps(t *testing.T) {
	llm := &fakeLLM{err: errors.New("down")}
	p := newTestPlanner(llm)

	plan := p.GeneratePlan(context.Background(), "publish now", nil, 0)
	assert.Len(t, plan.Tasks, 1)

	plan = p.GeneratePlan(context.Background(), "publish now", nil, 99)
	assert.LessOrEqual(t, len(plan.Tasks), 10)
}

func TestGenerateActionsFromModel(t *testing.T) {
	llm := &fakeLLM{response: `{"actions":[
		{"type":"navigate","url":"https://linkedin.com"},
		{"type":"type","selector":"#editor","value":"Hello"},
		{"type":"click","selector":"#post"},
		{"type":"screenshot"}
	]}`}

	actions, err := newTestPlanner(llm).GenerateActions(context.Background(), "publish", map[string]any{"content": "Hello"})
	require.NoError(t, err)
	require.Len(t, actions, 4)
	assert.Equal(t, schemas.ActionNavigate, actions[0].Type)
	assert.Equal(t, schemas.ActionCapture, actions[3].Type)

	// The action path sends the browser-agent system prompt.
	require.Len(t, llm.requests, 1)
	assert.Equal(t, actionSystemPrompt, llm.requests[0].SystemPrompt)
}

func TestGenerateActionsErrors(t *testing.T) {
	cases := []struct {
		name    string
		llm     *fakeLLM
		wantErr string
	}{
		{"transport", &fakeLLM{err: errors.New("boom")}, "llm generation failed"},
		{"malformed", &fakeLLM{response: "not json"}, "unmarshal"},
		{"empty", &fakeLLM{response: `{"actions":[]}`}, "no actions"},
		{"missing type", &fakeLLM{response: `{"actions":[{"selector":"#x"}]}`}, "missing required 'type'"},
		{"unknown type", &fakeLLM{response: `{"actions":[{"type":"hover"}]}`}, "unknown type"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestPlanner(tc.llm).GenerateActions(context.Background(), "goal", nil)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestGenerateActionsDemoMode(t *testing.T) {
	p := New(config.PlannerConfig{MaxSteps: 5, DemoMode: true}, &fakeLLM{err: errors.New("must not be called")}, zap.NewNop())

	actions, err := p.GenerateActions(context.Background(), "publish", map[string]any{"content": "Hello"})
	require.NoError(t, err)
	require.Len(t, actions, 4)
	assert.Equal(t, "https://example.com/demo-social-publisher", actions[0].URL)
	assert.Equal(t, "Hello", actions[1].Value)
	assert.Equal(t, schemas.ActionCapture, actions[3].Type)
}
