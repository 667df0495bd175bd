package modelclient

import (
	"fmt"
	"strings"
)

// Registry selects the Client backend for a session's configured
// ModelFamily. Spec scope is one configured provider per session, not
// cross-provider failover, so this is a plain lookup rather than the
// teacher's internal/agent/failover.go FailoverOrchestrator (circuit
// breakers and automatic failover across providers are out of scope here).
type Registry struct {
	clients map[string]Client
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds a Client under its own Name().
func (r *Registry) Register(client Client) {
	r.clients[client.Name()] = client
}

// Resolve returns the Client for the given ModelFamily. ModelFamily values
// are expected to be the provider name ("anthropic", "openai", "google"),
// optionally followed by "/" and a specific model ID (e.g.
// "anthropic/claude-opus-4-20250514"); only the provider segment is used
// to select the Client.
func (r *Registry) Resolve(modelFamily string) (Client, error) {
	provider := modelFamily
	if idx := strings.IndexByte(modelFamily, '/'); idx >= 0 {
		provider = modelFamily[:idx]
	}
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("modelclient: no client registered for provider %q", provider)
	}
	return client, nil
}

// ModelID strips the optional provider prefix from a ModelFamily value,
// returning the model ID to place in CompletionRequest.Model. An empty
// result means "use the client's default model".
func ModelID(modelFamily string) string {
	if idx := strings.IndexByte(modelFamily, '/'); idx >= 0 {
		return modelFamily[idx+1:]
	}
	return ""
}
