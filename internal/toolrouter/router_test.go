package toolrouter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/codexrun/agentcore/internal/sandbox"
	"github.com/codexrun/agentcore/pkg/codex"
)

type fakeSpawner struct {
	result sandbox.Result
	err    error
	lastReq sandbox.SpawnRequest
}

func (f *fakeSpawner) Run(_ context.Context, req sandbox.SpawnRequest) (sandbox.Result, error) {
	f.lastReq = req
	return f.result, f.err
}

func TestNewRouter_DefaultShellAndPlanTool(t *testing.T) {
	cfg := codex.ToolsConfig{ShellType: codex.ShellDefault, PlanTool: true}
	r := NewRouter(cfg, Dependencies{Sandbox: &fakeSpawner{}})

	if _, ok := r.Get("shell"); !ok {
		t.Fatal("expected default shell tool to be registered")
	}
	if _, ok := r.Get("update_plan"); !ok {
		t.Fatal("expected plan tool to be registered when PlanTool is set")
	}
	if _, ok := r.Get("apply_patch"); ok {
		t.Fatal("did not expect apply_patch without ApplyPatchToolType set")
	}
}

func TestNewRouter_LocalShellRegistersNoBackend(t *testing.T) {
	cfg := codex.ToolsConfig{ShellType: codex.ShellLocal}
	r := NewRouter(cfg, Dependencies{Sandbox: &fakeSpawner{}})
	if _, ok := r.Get("shell"); ok {
		t.Fatal("local shell tools are model-owned and should not register a backend handler")
	}
}

func TestRouter_KindOf_UnknownDefaultsToMutating(t *testing.T) {
	r := NewRouter(codex.ToolsConfig{}, Dependencies{})
	if kind := r.KindOf("nonexistent"); kind != Mutating {
		t.Fatalf("expected unknown tool to default to Mutating, got %v", kind)
	}
}

func TestRouter_Dispatch_ValidatesSchemaBeforeHandling(t *testing.T) {
	spawner := &fakeSpawner{result: sandbox.Result{ExitCode: 0, Stdout: "ok\n"}}
	r := NewRouter(codex.ToolsConfig{ShellType: codex.ShellDefault}, Dependencies{Sandbox: spawner})

	// Missing the required "command" field.
	out, err := r.Dispatch(context.Background(), Invocation{
		ToolName: "shell",
		Params:   json.RawMessage(`{}`),
	})
	if err == nil {
		t.Fatalf("expected schema validation to reject missing required field, got output %+v", out)
	}
}

func TestRouter_Dispatch_ShellSuccess(t *testing.T) {
	spawner := &fakeSpawner{result: sandbox.Result{ExitCode: 0, Stdout: "hi\n"}}
	r := NewRouter(codex.ToolsConfig{ShellType: codex.ShellDefault}, Dependencies{Sandbox: spawner})

	out, err := r.Dispatch(context.Background(), Invocation{
		ToolName: "shell",
		Params:   json.RawMessage(`{"command":["echo","hi"]}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success {
		t.Fatalf("expected success output, got %+v", out)
	}
	if len(spawner.lastReq.Argv) != 2 || spawner.lastReq.Argv[0] != "echo" {
		t.Fatalf("expected argv to pass through read-through, got %v", spawner.lastReq.Argv)
	}
}
