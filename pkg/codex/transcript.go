package codex

import "encoding/json"

// Role identifies the author of a Message transcript item.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ResponseItemKind tags the variant held by a ResponseItem.
type ResponseItemKind string

const (
	ItemMessage            ResponseItemKind = "message"
	ItemReasoning          ResponseItemKind = "reasoning"
	ItemFunctionCall       ResponseItemKind = "function_call"
	ItemFunctionCallOutput ResponseItemKind = "function_call_output"
	ItemLocalShellCall     ResponseItemKind = "local_shell_call"
	ItemCustomToolCall     ResponseItemKind = "custom_tool_call"
	ItemWebSearchCall      ResponseItemKind = "web_search_call"
	ItemOther              ResponseItemKind = "other"
)

// ResponseItem is a single entry in the transcript. Exactly one of the
// payload fields is meaningful, selected by Kind. Ordering within the
// transcript is insertion order (spec §3 invariant).
type ResponseItem struct {
	Kind ResponseItemKind `json:"type"`

	// Message payload.
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`

	// Reasoning payload.
	ReasoningSummary string `json:"reasoning_summary,omitempty"`

	// FunctionCall / CustomToolCall payload.
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	CallID    string          `json:"call_id,omitempty"`

	// FunctionCallOutput payload.
	OutputContent string `json:"output_content,omitempty"`
	Success       bool   `json:"success,omitempty"`

	// LocalShellCall payload.
	ShellParams *ExecParams `json:"shell_params,omitempty"`

	// Other/unrecognized payload, preserved verbatim for forward compat.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// IsUserMessage reports whether the item is a user-authored message, the
// unit fork() truncates against (spec §4.1, §8).
func (r ResponseItem) IsUserMessage() bool {
	return r.Kind == ItemMessage && r.Role == RoleUser
}

// Persistable reports whether the rollout recorder's filter policy keeps
// this item (spec §4.7): messages (non-system), reasoning, local shell
// calls, function calls/outputs, and custom tool calls/outputs. Web search
// calls, "other", and all delta/approval events are excluded.
func (r ResponseItem) Persistable() bool {
	switch r.Kind {
	case ItemMessage:
		return r.Role != RoleSystem
	case ItemReasoning, ItemLocalShellCall, ItemFunctionCall, ItemFunctionCallOutput, ItemCustomToolCall:
		return true
	default:
		return false
	}
}

// ExecParams describes a shell invocation. argv[0] is a command or resolved
// executable path; env is minimal for patch application and
// inherited-minus-LD_/DYLD_ for shell execution (spec §3 invariant).
type ExecParams struct {
	Argv                      []string          `json:"argv"`
	Cwd                       string            `json:"cwd"`
	TimeoutMS                 int64             `json:"timeout_ms,omitempty"`
	Env                       map[string]string `json:"env,omitempty"`
	WithEscalatedPermissions  bool              `json:"with_escalated_permissions,omitempty"`
	Justification             string            `json:"justification,omitempty"`
}

// ToolCallPayloadKind tags the variant held by a ToolCall's payload.
type ToolCallPayloadKind string

const (
	PayloadFunction    ToolCallPayloadKind = "function"
	PayloadCustom      ToolCallPayloadKind = "custom"
	PayloadLocalShell  ToolCallPayloadKind = "local_shell"
	PayloadUnifiedExec ToolCallPayloadKind = "unified_exec"
	PayloadMCP         ToolCallPayloadKind = "mcp"
)

// ToolCall is the normalized representation of a model-requested operation,
// regardless of which wire shape the provider used to express it.
type ToolCall struct {
	ToolName string              `json:"tool_name"`
	CallID   string              `json:"call_id"`
	Kind     ToolCallPayloadKind `json:"kind"`

	// PayloadFunction / PayloadCustom.
	Args json.RawMessage `json:"args,omitempty"`

	// PayloadLocalShell / PayloadUnifiedExec.
	ExecParams *ExecParams `json:"exec_params,omitempty"`

	// PayloadMCP.
	MCPServer string          `json:"mcp_server,omitempty"`
	MCPTool   string          `json:"mcp_tool,omitempty"`
	MCPArgs   json.RawMessage `json:"mcp_args,omitempty"`
}
