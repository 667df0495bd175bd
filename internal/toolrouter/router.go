package toolrouter

import (
	"context"
	"fmt"
	"sync"

	"github.com/codexrun/agentcore/pkg/codex"
)

// Router is built once per turn from a ToolsConfig snapshot and dispatches
// each model-issued invocation to its registered Tool. Grounded on the
// teacher's internal/agent.ToolRegistry, generalized from a process-lifetime
// singleton into a per-turn, config-driven catalogue (spec §4.4: "A
// ToolRouter is built once per turn from ToolsConfig").
type Router struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRouter builds the tool catalogue for one turn from cfg, registering
// exactly the handlers the snapshot enables.
func NewRouter(cfg codex.ToolsConfig, deps Dependencies) *Router {
	r := &Router{tools: make(map[string]Tool)}

	switch cfg.ShellType {
	case codex.ShellStreamable:
		r.Register(NewStreamableShellTool(deps.Sandbox))
	case codex.ShellLocal:
		// Local shell tools are model-owned: the model executes the
		// command itself and only reports the outcome back, so no backend
		// handler is registered here.
	default:
		r.Register(NewShellTool(deps.Sandbox))
	}

	if cfg.ExperimentalUnifiedExec {
		r.Register(NewUnifiedExecTool(deps.Sandbox))
	}

	if cfg.PlanTool {
		r.Register(NewPlanTool(deps.OnPlanUpdate))
	}

	switch cfg.ApplyPatchToolType {
	case codex.ApplyPatchFunction:
		r.Register(NewApplyPatchTool(deps.Sandbox, deps.SelfExe, ApplyPatchFunctionCall))
	case codex.ApplyPatchFreeform:
		r.Register(NewApplyPatchTool(deps.Sandbox, deps.SelfExe, ApplyPatchFreeform))
	}

	if cfg.WebSearchRequest {
		r.Register(NewWebSearchTool(deps.WebSearch))
	}

	if cfg.IncludeViewImageTool {
		r.Register(NewViewImageTool())
	}

	return r
}

// Register adds or replaces a tool by name.
func (r *Router) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get returns a tool by name.
func (r *Router) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the names of every registered tool, for building the
// model-facing tool list.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// KindOf reports the read-only/mutating classification of a registered
// tool, defaulting to Mutating (the conservative choice) for unknown names
// so the scheduler never mis-parallelizes an unrecognized call.
func (r *Router) KindOf(name string) Kind {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Mutating
	}
	return tool.Kind()
}

// Dispatch validates inv.Params against the tool's schema (when the tool
// declares one) and invokes its handler.
func (r *Router) Dispatch(ctx context.Context, inv Invocation) (ToolOutput, error) {
	r.mu.RLock()
	tool, ok := r.tools[inv.ToolName]
	r.mu.RUnlock()
	if !ok {
		return ToolOutput{}, fmt.Errorf("toolrouter: unknown tool %q", inv.ToolName)
	}

	if schema := tool.Schema(); len(schema) > 0 {
		if err := ValidateAgainstSchema(schema, inv.Params); err != nil {
			return ToolOutput{}, fmt.Errorf("toolrouter: invalid parameters for %q: %w", inv.ToolName, err)
		}
	}

	return tool.Handle(ctx, inv)
}

// Dependencies bundles the collaborators Router needs to construct its
// handlers from a ToolsConfig snapshot.
type Dependencies struct {
	Sandbox      SandboxSpawner
	SelfExe      string
	WebSearch    WebSearcher
	OnPlanUpdate func(steps []string)
}
