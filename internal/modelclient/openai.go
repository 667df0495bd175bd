package modelclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/codexrun/agentcore/pkg/codex"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Client against OpenAI's chat completions API,
// grounded on the teacher's providers/openai.go OpenAIProvider.
type OpenAIClient struct {
	client       *openai.Client
	defaultModel string
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey       string
	DefaultModel string
}

// NewOpenAIClient builds an OpenAIClient from config.
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("modelclient: openai API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}
	return &OpenAIClient{
		client:       openai.NewClient(config.APIKey),
		defaultModel: config.DefaultModel,
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Models() []Model {
	return []Model{
		{ID: "gpt-4o", Name: "GPT-4o", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextSize: 128000, SupportsVision: true},
		{ID: "gpt-4", Name: "GPT-4", ContextSize: 8192, SupportsVision: false},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextSize: 16385, SupportsVision: false},
	}
}

func (c *OpenAIClient) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.defaultModel
}

// Stream issues a single streaming request; StreamWithRetry owns retries
// across attempts, so this method makes exactly one underlying API call.
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	messages := c.convertMessages(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:    c.model(req),
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = c.convertTools(req.Tools)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, NewProviderError(c.Name(), c.model(req), err)
	}

	out := make(chan StreamEvent)
	go c.processStream(ctx, stream, out, c.model(req))
	return out, nil
}

func (c *OpenAIClient) processStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- StreamEvent, model string) {
	defer close(out)
	defer stream.Close()

	toolCalls := make(map[int]*codex.ToolCall)

	flushToolCalls := func() {
		for _, tc := range toolCalls {
			if tc.CallID != "" && tc.ToolName != "" {
				out <- StreamEvent{Kind: EventKindToolCall, ToolCall: tc}
			}
		}
		toolCalls = make(map[int]*codex.ToolCall)
	}

	for {
		select {
		case <-ctx.Done():
			out <- StreamEvent{Kind: EventKindError, Err: ctx.Err()}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				flushToolCalls()
				out <- StreamEvent{Kind: EventKindComplete}
				return
			}
			out <- StreamEvent{Kind: EventKindError, Err: NewProviderError(c.Name(), model, err)}
			return
		}

		if len(response.Choices) == 0 {
			continue
		}

		delta := response.Choices[0].Delta

		if delta.Content != "" {
			out <- StreamEvent{Kind: EventKindText, TextDelta: delta.Content}
		}

		if len(delta.ToolCalls) > 0 {
			for _, tc := range delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				if toolCalls[index] == nil {
					toolCalls[index] = &codex.ToolCall{Kind: codex.PayloadFunction}
				}
				if tc.ID != "" {
					toolCalls[index].CallID = tc.ID
				}
				if tc.Function.Name != "" {
					toolCalls[index].ToolName = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					var currentArgs string
					if toolCalls[index].Args != nil {
						currentArgs = string(toolCalls[index].Args)
					}
					currentArgs += tc.Function.Arguments
					toolCalls[index].Args = json.RawMessage(currentArgs)
				}
			}
		}

		if response.Choices[0].FinishReason == "tool_calls" {
			flushToolCalls()
		}
	}
}

func (c *OpenAIClient) convertMessages(messages []CompletionMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case RoleUser, RoleSystem:
			result = append(result, openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content})

		case RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.CallID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.ToolName,
							Arguments: string(tc.Args),
						},
					}
				}
			}
			result = append(result, oaiMsg)

		case RoleTool:
			for _, tr := range msg.ToolResults {
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					ToolCallID: tr.ToolCallID,
				})
			}
		}
	}

	return result
}

func (c *OpenAIClient) convertTools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))

	for i, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema, &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}

		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaMap,
			},
		}
	}

	return result
}
