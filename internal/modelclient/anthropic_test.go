package modelclient

import (
	"encoding/json"
	"testing"

	"github.com/codexrun/agentcore/pkg/codex"
)

func TestNewAnthropicClientRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicClient(AnthropicConfig{}); err == nil {
		t.Error("expected error when APIKey is empty")
	}
}

func TestNewAnthropicClientDefaults(t *testing.T) {
	client, err := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})
	if err != nil {
		t.Fatalf("NewAnthropicClient() error = %v", err)
	}
	if client.defaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("defaultModel = %q, want claude-sonnet-4-20250514", client.defaultModel)
	}
	if client.Name() != "anthropic" {
		t.Errorf("Name() = %q, want anthropic", client.Name())
	}
}

func TestAnthropicConvertMessagesSkipsSystem(t *testing.T) {
	client, _ := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})

	messages := []CompletionMessage{
		{Role: RoleSystem, Content: "ignored, handled via params.System"},
		{Role: RoleUser, Content: "hello"},
	}

	result, err := client.convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages() error = %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1 (system message skipped)", len(result))
	}
}

func TestAnthropicConvertMessagesWithToolCall(t *testing.T) {
	client, _ := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})

	messages := []CompletionMessage{
		{
			Role: RoleAssistant,
			ToolCalls: []codex.ToolCall{
				{CallID: "call_1", ToolName: "search", Args: json.RawMessage(`{"q":"test"}`)},
			},
		},
	}

	result, err := client.convertMessages(messages)
	if err != nil {
		t.Fatalf("convertMessages() error = %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1", len(result))
	}
}

func TestAnthropicConvertMessagesInvalidToolInput(t *testing.T) {
	client, _ := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})

	messages := []CompletionMessage{
		{
			Role: RoleAssistant,
			ToolCalls: []codex.ToolCall{
				{CallID: "call_1", ToolName: "search", Args: json.RawMessage(`not json`)},
			},
		},
	}

	if _, err := client.convertMessages(messages); err == nil {
		t.Error("expected error for invalid tool call input JSON")
	}
}

func TestAnthropicConvertTools(t *testing.T) {
	client, _ := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})

	tools := []ToolDefinition{
		{Name: "shell", Description: "run a shell command", Schema: json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"}}}`)},
	}

	result, err := client.convertTools(tools)
	if err != nil {
		t.Fatalf("convertTools() error = %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("len(result) = %d, want 1", len(result))
	}
}

func TestAnthropicModels(t *testing.T) {
	client, _ := NewAnthropicClient(AnthropicConfig{APIKey: "sk-ant-test"})
	models := client.Models()
	if len(models) == 0 {
		t.Fatal("expected non-empty model catalogue")
	}
}
