package modelclient

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"strings"

	"github.com/codexrun/agentcore/pkg/codex"
	"google.golang.org/genai"
)

// GoogleClient implements Client against the Gemini API, grounded on the
// teacher's providers/google.go GoogleProvider, trimmed of image/file
// attachment conversion (this runtime's CompletionMessage carries no
// attachment field).
type GoogleClient struct {
	client       *genai.Client
	defaultModel string
}

// GoogleConfig configures a GoogleClient.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
}

// NewGoogleClient builds a GoogleClient from config.
func NewGoogleClient(ctx context.Context, config GoogleConfig) (*GoogleClient, error) {
	if config.APIKey == "" {
		return nil, errors.New("modelclient: google API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewProviderError("google", config.DefaultModel, err)
	}

	return &GoogleClient{client: client, defaultModel: config.DefaultModel}, nil
}

func (c *GoogleClient) Name() string { return "google" }

func (c *GoogleClient) Models() []Model {
	return []Model{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1000000, SupportsVision: true},
		{ID: "gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash Lite", ContextSize: 1000000, SupportsVision: true},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextSize: 2000000, SupportsVision: true},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", ContextSize: 1000000, SupportsVision: true},
	}
}

func (c *GoogleClient) model(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.defaultModel
}

// Stream issues a single streaming request; StreamWithRetry owns retries
// across attempts.
func (c *GoogleClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	model := c.model(req)
	contents, err := c.convertMessages(req.Messages)
	if err != nil {
		return nil, NewProviderError(c.Name(), model, err)
	}

	config := c.buildConfig(req)

	streamIter := c.client.Models.GenerateContentStream(ctx, model, contents, config)

	out := make(chan StreamEvent)
	go c.processStream(ctx, streamIter, out, model)
	return out, nil
}

func (c *GoogleClient) processStream(ctx context.Context, streamIter iter.Seq2[*genai.GenerateContentResponse, error], out chan<- StreamEvent, model string) {
	defer close(out)

	for resp, err := range streamIter {
		select {
		case <-ctx.Done():
			out <- StreamEvent{Kind: EventKindError, Err: ctx.Err()}
			return
		default:
		}

		if err != nil {
			out <- StreamEvent{Kind: EventKindError, Err: NewProviderError(c.Name(), model, err)}
			return
		}
		if resp == nil {
			continue
		}

		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					out <- StreamEvent{Kind: EventKindText, TextDelta: part.Text}
				}
				if part.FunctionCall != nil {
					argsJSON, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						argsJSON = []byte("{}")
					}
					out <- StreamEvent{Kind: EventKindToolCall, ToolCall: &codex.ToolCall{
						CallID:   part.FunctionCall.Name,
						ToolName: part.FunctionCall.Name,
						Kind:     codex.PayloadFunction,
						Args:     argsJSON,
					}}
				}
			}
		}
	}

	out <- StreamEvent{Kind: EventKindComplete}
}

func (c *GoogleClient) convertMessages(messages []CompletionMessage) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			continue
		}

		content := &genai.Content{}
		switch msg.Role {
		case RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}

		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if len(tc.Args) > 0 {
				if err := json.Unmarshal(tc.Args, &args); err != nil {
					args = make(map[string]any)
				}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.ToolName, Args: args},
			})
		}

		for _, tr := range msg.ToolResults {
			var response map[string]any
			if err := json.Unmarshal([]byte(tr.Content), &response); err != nil {
				response = map[string]any{"result": tr.Content, "error": tr.IsError}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: tr.ToolCallID, Response: response},
			})
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}

	return result, nil
}

func (c *GoogleClient) buildConfig(req CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	if len(req.Tools) > 0 {
		config.Tools = c.convertTools(req.Tools)
	}

	return config
}

func (c *GoogleClient) convertTools(tools []ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		var schemaMap map[string]any
		if err := json.Unmarshal(tool.Schema, &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  jsonSchemaToGenaiSchema(schemaMap),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// jsonSchemaToGenaiSchema converts a parsed JSON Schema map into Gemini's
// Schema type, grounded on the teacher's internal/agent/toolconv.ToGeminiSchema.
func jsonSchemaToGenaiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}

	schema := &genai.Schema{}

	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = jsonSchemaToGenaiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = jsonSchemaToGenaiSchema(items)
	}

	return schema
}
