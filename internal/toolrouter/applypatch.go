package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codexrun/agentcore/internal/sandbox"
)

// ApplyPatchSurface selects how apply-patch is exposed to the model, per
// ToolsConfig.ApplyPatchToolType.
type ApplyPatchSurface string

const (
	ApplyPatchFunctionCall ApplyPatchSurface = "function"
	ApplyPatchFreeform     ApplyPatchSurface = "freeform"
)

// ApplyPatchParams is the parameter shape for the function-call surface.
type ApplyPatchParams struct {
	Patch string `json:"patch" jsonschema:"required,description=unified diff text to apply"`
}

// ApplyPatchTool rewrites ExecParams so the running program re-invokes
// itself with a reserved --codex-run-as-apply-patch argument carrying the
// patch text, cleared environment, and original cwd (spec §4.4), guaranteeing
// the patch applies inside the same binary regardless of how the tool call
// was phrased (function vs. freeform).
type ApplyPatchTool struct {
	spawner SandboxSpawner
	selfExe string
	surface ApplyPatchSurface
	schema  json.RawMessage
}

// NewApplyPatchTool constructs the apply-patch backend. selfExe is the path
// to this program's own executable, re-invoked with
// --codex-run-as-apply-patch.
func NewApplyPatchTool(spawner SandboxSpawner, selfExe string, surface ApplyPatchSurface) *ApplyPatchTool {
	var schema json.RawMessage
	if surface == ApplyPatchFunctionCall {
		schema, _ = GenerateSchema(ApplyPatchParams{})
	}
	return &ApplyPatchTool{spawner: spawner, selfExe: selfExe, surface: surface, schema: schema}
}

func (t *ApplyPatchTool) Name() string {
	if t.surface == ApplyPatchFreeform {
		return "apply_patch_freeform"
	}
	return "apply_patch"
}

func (t *ApplyPatchTool) Kind() Kind              { return Mutating }
func (t *ApplyPatchTool) Schema() json.RawMessage { return t.schema }

// patchTextOf extracts the raw patch text from either surface's payload:
// the function-call surface carries it as JSON {"patch": "..."}; the
// freeform surface carries the patch as the entire raw params body.
func (t *ApplyPatchTool) patchTextOf(params json.RawMessage) (string, error) {
	if t.surface == ApplyPatchFreeform {
		var raw string
		if err := json.Unmarshal(params, &raw); err == nil {
			return raw, nil
		}
		return string(params), nil
	}
	var p ApplyPatchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("apply_patch: decode params: %w", err)
	}
	return p.Patch, nil
}

func (t *ApplyPatchTool) Handle(ctx context.Context, inv Invocation) (ToolOutput, error) {
	patch, err := t.patchTextOf(inv.Params)
	if err != nil {
		return ToolOutput{}, err
	}

	result, err := t.spawner.Run(ctx, sandbox.SpawnRequest{
		Argv:             []string{t.selfExe, "--codex-run-as-apply-patch", patch},
		Cwd:              inv.Cwd,
		SandboxPolicy:    inv.SandboxPolicy,
		Stdio:            sandbox.StdioRedirectForShellTool,
		Timeout:          30 * time.Second,
		OutputByteBudget: defaultOutputByteBudget,
		// Apply-patch re-invocation gets no inherited environment: the
		// spec requires a cleared environment for this re-exec path.
		Env: map[string]string{},
	})
	if err != nil {
		return ToolOutput{Kind: OutputFunction, Content: err.Error(), Success: false}, nil
	}

	return ToolOutput{
		Kind:    OutputFunction,
		Content: formatShellResult(result),
		Success: result.ExitCode == 0,
	}, nil
}
