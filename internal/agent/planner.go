package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/castmatch/castmatch/internal/capability"
	"github.com/castmatch/castmatch/internal/llm"
)

// ChatClient is the LLM collaborator the planner speaks to.
type ChatClient interface {
	ChatJSON(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error)
}

// PlanStep is one planned capability call.
type PlanStep struct {
	Capability string         `json:"capability"`
	Input      map[string]any `json:"input"`
}

// Plan is the ordered output of the planner: human-readable step
// descriptions plus the machine-executable call list.
type Plan struct {
	Plan  []string   `json:"plan"`
	Steps []PlanStep `json:"steps"`
}

const plannerSystemPrompt = `You are a capability-using planner.
Given a GOAL and a list of CAPABILITIES, output a JSON plan with:
- plan: array of short strings
- steps: array of { capability, input }

Rules:
- Use only capabilities from the capability list.
- Inputs MUST match each capability's inputSchema.
- Return ONLY valid JSON (no markdown).`

// Planner asks the LLM collaborator for an ordered capability-call plan and
// validates it against the registry's contracts. There is no repair pass:
// a malformed or out-of-contract plan is a terminal planning error.
type Planner struct {
	chat     ChatClient
	registry *capability.Registry
}

func NewPlanner(chat ChatClient, registry *capability.Registry) *Planner {
	return &Planner{chat: chat, registry: registry}
}

func (p *Planner) Plan(ctx context.Context, goal Goal) (Plan, error) {
	listings, err := json.MarshalIndent(p.registry.List(), "", "  ")
	if err != nil {
		return Plan{}, fmt.Errorf("marshaling capability listing: %w", err)
	}

	user := fmt.Sprintf(`GOAL:
%s

CAPABILITIES:
%s

Return JSON:
{ "plan": [...], "steps": [ { "capability": "...", "input": {...} } ] }`,
		goal.CanonicalJSON(), listings)

	raw, err := p.chat.ChatJSON(ctx, []llm.Message{
		{Role: "system", Content: plannerSystemPrompt},
		{Role: "user", Content: user},
	}, 0)
	if err != nil {
		return Plan{}, fmt.Errorf("planning goal: %w", err)
	}

	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return Plan{}, fmt.Errorf("parsing plan: %w", err)
	}
	if err := p.validate(plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// validate enforces the plan contract: at least one description and one
// step, every step naming a registered capability with in-contract input.
func (p *Planner) validate(plan Plan) error {
	if len(plan.Plan) == 0 {
		return fmt.Errorf("parsing plan: plan must contain at least one entry")
	}
	if len(plan.Steps) == 0 {
		return fmt.Errorf("parsing plan: steps must contain at least one entry")
	}
	for i, step := range plan.Steps {
		if step.Capability == "" {
			return fmt.Errorf("parsing plan: step %d is missing a capability name", i)
		}
		if err := p.registry.Validate(step.Capability, step.Input); err != nil {
			return fmt.Errorf("plan step %d (%s): %w", i, step.Capability, err)
		}
	}
	return nil
}
