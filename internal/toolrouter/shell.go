package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codexrun/agentcore/internal/sandbox"
)

// ShellParams is the JSON-schema-reflected parameter shape for the default
// and streamable shell tools.
type ShellParams struct {
	Command          []string `json:"command" jsonschema:"required,description=argv to execute"`
	Cwd              string   `json:"workdir,omitempty" jsonschema:"description=working directory relative to the session cwd"`
	TimeoutMS        int64    `json:"timeout_ms,omitempty" jsonschema:"description=execution timeout in milliseconds"`
	WithEscalatedPermissions bool `json:"with_escalated_permissions,omitempty"`
	Justification    string   `json:"justification,omitempty" jsonschema:"description=required when with_escalated_permissions is set under a danger-full-access sandbox"`
}

// ShellTool is the default shell execution backend: accepts ExecParams
// unchanged and runs them through the sandbox (spec §4.4 "Shell backend
// (read-through)").
type ShellTool struct {
	spawner SandboxSpawner
	schema  json.RawMessage
}

// NewShellTool constructs the default (non-streaming) shell tool.
func NewShellTool(spawner SandboxSpawner) *ShellTool {
	schema, _ := GenerateSchema(ShellParams{})
	return &ShellTool{spawner: spawner, schema: schema}
}

func (t *ShellTool) Name() string        { return "shell" }
func (t *ShellTool) Kind() Kind          { return Mutating }
func (t *ShellTool) Schema() json.RawMessage { return t.schema }

func (t *ShellTool) Handle(ctx context.Context, inv Invocation) (ToolOutput, error) {
	var params ShellParams
	if err := json.Unmarshal(inv.Params, &params); err != nil {
		return ToolOutput{}, fmt.Errorf("shell: decode params: %w", err)
	}

	cwd := inv.Cwd
	if params.Cwd != "" {
		cwd = params.Cwd
	}

	timeout := time.Duration(params.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	result, err := t.spawner.Run(ctx, sandbox.SpawnRequest{
		Argv:             params.Command,
		Cwd:              cwd,
		SandboxPolicy:    inv.SandboxPolicy,
		Stdio:            sandbox.StdioRedirectForShellTool,
		Timeout:          timeout,
		OutputByteBudget: defaultOutputByteBudget,
		OnChunk: func(c sandbox.OutputChunk) {
			if inv.OnOutputChunk != nil {
				inv.OnOutputChunk(c.Stream, c.Data)
			}
		},
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

// defaultOutputByteBudget bounds combined stdout/stderr before TruncateMiddle
// applies, per spec §4.6.
const defaultOutputByteBudget = 32 * 1024

func formatShellResult(r sandbox.Result) string {
	out := r.Stdout
	if r.Stderr != "" {
		if out != "" {
			out += "\n"
		}
		out += r.Stderr
	}
	return fmt.Sprintf("exit_code=%d\n%s", r.ExitCode, out)
}

// StreamableShellTool is the streamable shell surface (ToolsConfig.ShellType
// == Streamable): identical backend, distinct tool name so the model-facing
// catalogue can expose both call shapes without ambiguity.
type StreamableShellTool struct {
	*ShellTool
}

// NewStreamableShellTool constructs the streamable shell tool.
func NewStreamableShellTool(spawner SandboxSpawner) *StreamableShellTool {
	return &StreamableShellTool{ShellTool: NewShellTool(spawner)}
}

func (t *StreamableShellTool) Name() string { return "shell_streamable" }

// UnifiedExecTool exposes a single exec tool in place of the shell tool,
// for ToolsConfig.ExperimentalUnifiedExecTool.
type UnifiedExecTool struct {
	*ShellTool
}

// NewUnifiedExecTool constructs the experimental unified exec tool.
func NewUnifiedExecTool(spawner SandboxSpawner) *UnifiedExecTool {
	return &UnifiedExecTool{ShellTool: NewShellTool(spawner)}
}

func (t *UnifiedExecTool) Name() string { return "exec" }
