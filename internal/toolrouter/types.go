// Package toolrouter builds, per turn, the catalogue of tools exposed to the
// model from a codex.ToolsConfig snapshot, and dispatches invocations to
// their execution backends. Grounded on the teacher's
// internal/agent.ToolRegistry/Tool interface, generalized with a
// ReadOnly/Mutating classification the teacher's registry does not carry,
// which TurnRuntime's scheduler (internal/turn) uses to decide parallel vs.
// serial dispatch.
package toolrouter

import (
	"context"
	"encoding/json"

	"github.com/codexrun/agentcore/pkg/codex"
)

// Kind classifies whether a tool's effects require serializing its
// execution against other in-flight tool calls in the same turn.
type Kind string

const (
	ReadOnly Kind = "read_only"
	Mutating Kind = "mutating"
)

// OutputKind tags the variant of ToolOutput.
type OutputKind string

const (
	OutputFunction OutputKind = "function"
	OutputCustom   OutputKind = "custom"
	OutputMCP      OutputKind = "mcp"
)

// ToolOutput is the tagged union returned by a tool handler.
type ToolOutput struct {
	Kind OutputKind

	// Function.
	Content string
	Success bool

	// Custom.
	CustomContent string

	// Mcp.
	MCPResult json.RawMessage
}

// Invocation carries everything a tool handler needs: the call's payload
// plus read-only borrows of turn-scoped state. SessionID/Cwd/ApprovalState
// stand in for "borrows of the Session, the TurnContext, and a per-turn
// diff tracker" per spec §4.4 without introducing an import cycle with
// internal/session.
type Invocation struct {
	CallID        string
	ToolName      string
	Params        json.RawMessage
	Cwd           string
	SandboxPolicy codex.SandboxPolicy
	SessionID     string

	// OnOutputChunk streams partial output back to the model for
	// long-running shell/exec tools (ExecCommandOutputDelta, spec §6).
	OnOutputChunk func(stream string, data []byte)
}

// Tool is implemented by every entry in the router's catalogue.
type Tool interface {
	Name() string
	Kind() Kind
	Schema() json.RawMessage
	Handle(ctx context.Context, inv Invocation) (ToolOutput, error)
}
