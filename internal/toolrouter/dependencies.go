package toolrouter

import (
	"context"

	"github.com/codexrun/agentcore/internal/sandbox"
)

// SandboxSpawner is the subset of sandbox.Executor the shell/apply-patch
// backends depend on, so toolrouter can be unit-tested against a fake.
type SandboxSpawner interface {
	Run(ctx context.Context, req sandbox.SpawnRequest) (sandbox.Result, error)
}

// WebSearcher performs a web search request issued by the model when
// ToolsConfig.WebSearchRequest is enabled.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}
