package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codexrun/agentcore/internal/authprovider"
	"github.com/codexrun/agentcore/internal/config"
	"github.com/codexrun/agentcore/internal/convo"
	"github.com/codexrun/agentcore/internal/modelclient"
	"github.com/codexrun/agentcore/internal/observability"
	"github.com/codexrun/agentcore/internal/sandbox"
	"github.com/codexrun/agentcore/internal/toolrouter"
	"github.com/spf13/cobra"
)

// runtime bundles the long-lived collaborators a CLI subcommand needs to
// drive a conversation: the ConversationManager plus the Config it was
// built from. One runtime is assembled per invocation (codexcore is not a
// daemon; each subcommand call is its own process lifetime).
type runtime struct {
	cfg     *config.Config
	manager *convo.Manager
	logger  *slog.Logger
}

func resolveCodexHome(cmd *cobra.Command) (string, error) {
	if home, _ := cmd.Flags().GetString("codex-home"); home != "" {
		return home, nil
	}
	if home := os.Getenv("CODEX_HOME"); home != "" {
		return home, nil
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(dir, ".codex"), nil
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	logger := slog.Default()

	codexHome, err := resolveCodexHome(cmd)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(codexHome, 0o700); err != nil {
		return nil, fmt.Errorf("create codex home %s: %w", codexHome, err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = filepath.Join(codexHome, "config.toml")
	}
	cfg, err := config.Load(configPath, codexHome)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	auth := authprovider.New(credentialsConfig(cfg))
	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	tracer, _ := observability.NewTracer(observability.TraceConfig{
		ServiceName: orDefault(cfg.Tracing.ServiceName, "codexcore"),
		Endpoint:    cfg.Tracing.Endpoint,
	})
	metrics := observability.NewMetrics()

	deps := toolrouter.Dependencies{Sandbox: sandbox.NewExecutor()}
	manager := convo.New(auth, registry, deps, logger).WithObservability(tracer, metrics)

	return &runtime{cfg: cfg, manager: manager, logger: logger}, nil
}

func credentialsConfig(cfg *config.Config) authprovider.Config {
	creds := make([]authprovider.Credential, 0, len(cfg.Providers))
	for name, p := range cfg.Providers {
		creds = append(creds, authprovider.Credential{Provider: name, APIKey: p.APIKey, BaseURL: p.BaseURL})
	}
	return authprovider.Config{Credentials: creds}
}

// buildRegistry registers a ModelClient for every provider with a
// configured credential, mirroring the teacher's pattern of constructing
// one provider client per configured API key (cmd/nexus's service wiring).
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*modelclient.Registry, error) {
	registry := modelclient.NewRegistry()
	for name, p := range cfg.Providers {
		if p.APIKey == "" {
			continue
		}
		client, err := newProviderClient(name, p)
		if err != nil {
			logger.Warn("skipping provider with invalid config", "provider", name, "error", err)
			continue
		}
		if client != nil {
			registry.Register(client)
		}
	}
	return registry, nil
}

func newProviderClient(name string, p config.ProviderConfig) (modelclient.Client, error) {
	switch name {
	case "anthropic":
		return modelclient.NewAnthropicClient(modelclient.AnthropicConfig{APIKey: p.APIKey, BaseURL: p.BaseURL})
	case "openai":
		return modelclient.NewOpenAIClient(modelclient.OpenAIConfig{APIKey: p.APIKey})
	case "google":
		return modelclient.NewGoogleClient(context.Background(), modelclient.GoogleConfig{APIKey: p.APIKey})
	default:
		return nil, fmt.Errorf("unknown model provider %q", name)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
