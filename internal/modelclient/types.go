// Package modelclient implements ModelClient: the framed, resumable
// streaming transport from TurnRuntime to a model provider (spec §2, §8).
// It unifies three real provider SDKs — anthropic-sdk-go, go-openai, and
// google.golang.org/genai — behind one Client interface emitting a
// StreamEvent sequence, generalized from the teacher's per-provider
// LLMProvider contract in internal/agent/provider_types.go (CompletionChunk
// becomes StreamEvent; the provider-specific Complete signature becomes
// Client.Stream).
package modelclient

import (
	"context"
	"encoding/json"

	"github.com/codexrun/agentcore/pkg/codex"
)

// Model describes one selectable model within a provider's catalogue.
type Model struct {
	ID             string
	Name           string
	ContextSize    int
	SupportsVision bool
}

// Role mirrors codex.Role for a completion message; kept distinct so this
// package does not need to special-case system/user/assistant/tool framing
// identically to the persisted transcript.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolResult is a single tool output being fed back to the model for the
// message that produced the originating ToolCall.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// CompletionMessage is one entry in the rolled-up transcript TurnRuntime
// sends to the model on each request.
type CompletionMessage struct {
	Role        Role
	Content     string
	ToolCalls   []codex.ToolCall
	ToolResults []ToolResult
}

// ToolDefinition is the model-facing shape of a registered tool: name,
// description, and a JSON Schema for its parameters (produced by
// internal/toolrouter's schema generation).
type ToolDefinition struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// CompletionRequest is one request composed by TurnRuntime (spec §4.3 step 1).
type CompletionRequest struct {
	Model                string
	System               string
	Messages             []CompletionMessage
	Tools                []ToolDefinition
	MaxTokens            int
	EnableThinking       bool
	ThinkingBudgetTokens int
}

// StreamEventKind tags the variant of a StreamEvent.
type StreamEventKind string

const (
	// EventKindText is an incremental assistant-text delta.
	EventKindText StreamEventKind = "text"
	// EventKindReasoning is an incremental reasoning/thinking delta.
	EventKindReasoning StreamEventKind = "reasoning"
	// EventKindToolCall is a fully-accumulated tool call the model invoked.
	EventKindToolCall StreamEventKind = "tool_call"
	// EventKindComplete signals the stream ended with no protocol error.
	EventKindComplete StreamEventKind = "complete"
	// EventKindError is a StreamProtocol-class error terminating the stream.
	EventKindError StreamEventKind = "error"
)

// StreamEvent is one item in the sequence ModelClient yields for a single
// CompletionRequest, corresponding to spec §4.3 step 2's four outcomes.
type StreamEvent struct {
	Kind StreamEventKind

	// EventKindText / EventKindReasoning.
	TextDelta string

	// EventKindToolCall.
	ToolCall *codex.ToolCall

	// EventKindComplete.
	InputTokens  int
	OutputTokens int

	// EventKindError.
	Err error
}

// Client is the per-provider streaming backend behind ModelClient. Each
// family (anthropic, openai, google) implements this directly against its
// own SDK; ModelClient's Registry selects among them by SessionConfig's
// ModelFamily.
type Client interface {
	// Name returns the stable provider identifier ("anthropic", "openai", "google").
	Name() string
	// Models lists the model catalogue this client's provider serves.
	Models() []Model
	// Stream sends req and returns the channel of StreamEvents for it. The
	// channel is closed after an EventKindComplete or EventKindError event.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)
}
