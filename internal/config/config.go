// Package config loads the codexcore.toml configuration that seeds a
// ConversationManager's default SessionConfig, model-provider credentials,
// and ambient logging/tracing settings. Grounded on the teacher's
// internal/config loader (struct-tagged config with an $include merge
// pass over a raw map before final decode), generalized from the teacher's
// YAML-tagged config structs to TOML via github.com/pelletier/go-toml,
// the pack's actual TOML dependency (not BurntSushi/toml, which no example
// repo's code imports).
package config

import (
	"github.com/codexrun/agentcore/pkg/codex"
)

// Config is the top-level shape of codexcore.toml.
type Config struct {
	CodexHome string                      `toml:"codex_home"`
	Session   SessionDefaults             `toml:"session"`
	Providers map[string]ProviderConfig   `toml:"providers"`
	Logging   LoggingConfig               `toml:"logging"`
	Tracing   TracingConfig               `toml:"tracing"`
}

// SessionDefaults seeds codex.SessionConfig for new conversations.
type SessionDefaults struct {
	Cwd              string   `toml:"cwd"`
	ApprovalPolicy   string   `toml:"approval_policy"`
	SandboxKind      string   `toml:"sandbox_kind"`
	WritableRoots    []string `toml:"writable_roots"`
	NetworkAccess    bool     `toml:"network_access"`
	ModelFamily      string   `toml:"model_family"`
	ReasoningEffort  string   `toml:"reasoning_effort"`
	ShellType        string   `toml:"shell_type"`
	PlanTool         bool     `toml:"plan_tool"`
	ApplyPatchTool   string   `toml:"apply_patch_tool"`
	WebSearch        bool     `toml:"web_search"`
	ViewImageTool    bool     `toml:"view_image_tool"`
	UnifiedExec      bool     `toml:"unified_exec"`
	MCPServers       []string `toml:"mcp_servers"`
	UserInstructions string   `toml:"user_instructions"`
	BaseInstructions string   `toml:"base_instructions"`
	HistoryMaxItems  int      `toml:"history_max_items"`
	PersistAllHistory bool    `toml:"persist_all_history"`
}

// ProviderConfig supplies a ModelClient credential, keyed by provider name
// (e.g. "anthropic", "openai", "google") matching authprovider.Credential.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// LoggingConfig controls the CLI's log/slog handler.
type LoggingConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// TracingConfig controls the OpenTelemetry exporter used by
// observability.NewTracer; an empty Endpoint yields the no-op tracer.
type TracingConfig struct {
	ServiceName string  `toml:"service_name"`
	Endpoint    string  `toml:"endpoint"`
	SampleRate  float64 `toml:"sample_rate"`
}

// Default returns the configuration used when no codexcore.toml is found.
func Default(codexHome string) *Config {
	return &Config{
		CodexHome: codexHome,
		Session: SessionDefaults{
			ApprovalPolicy:  string(codex.ApprovalUnlessTrusted),
			SandboxKind:     string(codex.SandboxWorkspaceWrite),
			ShellType:       string(codex.ShellDefault),
			PlanTool:        true,
			HistoryMaxItems: 400,
		},
		Logging: LoggingConfig{Level: "info"},
		Tracing: TracingConfig{ServiceName: "codexcore"},
	}
}

// SessionConfig builds a codex.SessionConfig from the parsed defaults,
// rooted at cwd (the process's working directory unless overridden).
func (c *Config) SessionConfig(cwd string) codex.SessionConfig {
	s := c.Session
	if s.Cwd != "" {
		cwd = s.Cwd
	}
	return codex.SessionConfig{
		Cwd:            cwd,
		ApprovalPolicy: codex.ApprovalPolicy(orDefault(s.ApprovalPolicy, string(codex.ApprovalUnlessTrusted))),
		SandboxPolicy: codex.SandboxPolicy{
			Kind:          codex.SandboxKind(orDefault(s.SandboxKind, string(codex.SandboxWorkspaceWrite))),
			WritableRoots: s.WritableRoots,
			NetworkAccess: s.NetworkAccess,
		},
		ModelFamily:     s.ModelFamily,
		ReasoningEffort: s.ReasoningEffort,
		EnabledTools: codex.ToolsConfig{
			ShellType:              codex.ShellType(orDefault(s.ShellType, string(codex.ShellDefault))),
			PlanTool:               s.PlanTool,
			ApplyPatchToolType:     codex.ApplyPatchToolType(s.ApplyPatchTool),
			WebSearchRequest:       s.WebSearch,
			IncludeViewImageTool:   s.ViewImageTool,
			ExperimentalUnifiedExec: s.UnifiedExec,
		},
		MCPServers:       s.MCPServers,
		UserInstructions: s.UserInstructions,
		BaseInstructions: s.BaseInstructions,
		HistoryPolicy: codex.HistoryPolicy{
			PersistAll: s.PersistAllHistory,
			MaxItems:   s.HistoryMaxItems,
		},
		CodexHome: c.CodexHome,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
