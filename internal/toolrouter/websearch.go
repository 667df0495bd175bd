package toolrouter

import (
	"context"
	"encoding/json"
	"fmt"
)

// WebSearchParams is the parameter shape for the web_search tool.
type WebSearchParams struct {
	Query string `json:"query" jsonschema:"required,description=search query text"`
}

// WebSearchTool lets the model request a web search when
// ToolsConfig.WebSearchRequest is enabled.
type WebSearchTool struct {
	searcher WebSearcher
	schema   json.RawMessage
}

// NewWebSearchTool constructs the web search tool.
func NewWebSearchTool(searcher WebSearcher) *WebSearchTool {
	schema, _ := GenerateSchema(WebSearchParams{})
	return &WebSearchTool{searcher: searcher, schema: schema}
}

func (t *WebSearchTool) Name() string        { return "web_search" }
func (t *WebSearchTool) Kind() Kind          { return ReadOnly }
func (t *WebSearchTool) Schema() json.RawMessage { return t.schema }

func (t *WebSearchTool) Handle(ctx context.Context, inv Invocation) (ToolOutput, error) {
	var params WebSearchParams
	if err := json.Unmarshal(inv.Params, &params); err != nil {
		return ToolOutput{}, fmt.Errorf("web_search: decode params: %w", err)
	}
	if t.searcher == nil {
		return ToolOutput{Kind: OutputFunction, Content: "web search is not configured", Success: false}, nil
	}
	result, err := t.searcher.Search(ctx, params.Query)
	if err != nil {
		return ToolOutput{Kind: OutputFunction, Content: err.Error(), Success: false}, nil
	}
	return ToolOutput{Kind: OutputFunction, Content: result, Success: true}, nil
}

// ViewImageParams is the parameter shape for the view_image tool.
type ViewImageParams struct {
	Path string `json:"path" jsonschema:"required,description=filesystem path to an image to include in the conversation"`
}

// ViewImageTool is a read-only tool that lets the model attach a local
// image file to the conversation (ToolsConfig.IncludeViewImageTool).
type ViewImageTool struct {
	schema json.RawMessage
}

// NewViewImageTool constructs the view-image tool.
func NewViewImageTool() *ViewImageTool {
	schema, _ := GenerateSchema(ViewImageParams{})
	return &ViewImageTool{schema: schema}
}

func (t *ViewImageTool) Name() string        { return "view_image" }
func (t *ViewImageTool) Kind() Kind          { return ReadOnly }
func (t *ViewImageTool) Schema() json.RawMessage { return t.schema }

func (t *ViewImageTool) Handle(_ context.Context, inv Invocation) (ToolOutput, error) {
	var params ViewImageParams
	if err := json.Unmarshal(inv.Params, &params); err != nil {
		return ToolOutput{}, fmt.Errorf("view_image: decode params: %w", err)
	}
	// The actual image bytes are attached to the next model request by the
	// TurnRuntime, which reads this output's Content as a path reference.
	return ToolOutput{Kind: OutputFunction, Content: params.Path, Success: true}, nil
}
