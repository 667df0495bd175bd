package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
)

// PlanUpdateParams is the parameter shape for the update_plan tool.
type PlanUpdateParams struct {
	Steps []string `json:"steps" jsonschema:"required,description=ordered list of plan steps"`
}

// PlanTool exposes an update_plan function the model calls to report its
// current step-by-step plan, surfaced to the UI as a PlanUpdate event.
type PlanTool struct {
	onUpdate func(steps []string)
	schema   json.RawMessage
}

// NewPlanTool constructs the plan tool. onUpdate may be nil.
func NewPlanTool(onUpdate func(steps []string)) *PlanTool {
	schema, _ := GenerateSchema(PlanUpdateParams{})
	return &PlanTool{onUpdate: onUpdate, schema: schema}
}

func (t *PlanTool) Name() string        { return "update_plan" }
func (t *PlanTool) Kind() Kind          { return ReadOnly }
func (t *PlanTool) Schema() json.RawMessage { return t.schema }

func (t *PlanTool) Handle(_ context.Context, inv Invocation) (ToolOutput, error) {
	var params PlanUpdateParams
	if err := json.Unmarshal(inv.Params, &params); err != nil {
		return ToolOutput{}, fmt.Errorf("update_plan: decode params: %w", err)
	}
	if t.onUpdate != nil {
		t.onUpdate(params.Steps)
	}
	return ToolOutput{Kind: OutputFunction, Content: "plan updated", Success: true}, nil
}
