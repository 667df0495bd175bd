// Package convo implements ConversationManager: the lifecycle registry that
// creates, retrieves, forks, and drops Sessions (spec §4.1). It exclusively
// owns the ConversationId -> Session mapping; Session itself never reaches
// back into the registry. Grounded on the teacher's internal/sessions.Store
// CRUD surface, specialized from a persisted, channel-addressed store to an
// in-process registry keyed by conversation id.
package convo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/codexrun/agentcore/internal/authprovider"
	"github.com/codexrun/agentcore/internal/modelclient"
	"github.com/codexrun/agentcore/internal/observability"
	"github.com/codexrun/agentcore/internal/session"
	"github.com/codexrun/agentcore/internal/toolrouter"
	"github.com/codexrun/agentcore/pkg/codex"
)

// ErrConversationNotFound is returned by GetConversation and
// ForkConversation when the requested id is not registered.
var ErrConversationNotFound = errors.New("convo: conversation not found")

// Manager owns every live Session in this process, guarded by a single
// RWMutex (spec §3: "ConversationManager exclusively owns the mapping
// ConversationId -> Session").
type Manager struct {
	mu       sync.RWMutex
	sessions map[codex.ConversationID]*session.Session

	auth     *authprovider.AuthProvider
	registry *modelclient.Registry
	deps     toolrouter.Dependencies
	logger   *slog.Logger
	tracer   *observability.Tracer
	metrics  *observability.Metrics
}

// New constructs a Manager. auth and registry are required; the rest fall
// back to defaults the way session.New's Config does.
func New(auth *authprovider.AuthProvider, registry *modelclient.Registry, deps toolrouter.Dependencies, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions: make(map[codex.ConversationID]*session.Session),
		auth:     auth,
		registry: registry,
		deps:     deps,
		logger:   logger,
	}
}

// WithObservability attaches a shared Tracer/Metrics pair so every Session
// this Manager creates reports through the same collectors.
func (m *Manager) WithObservability(tracer *observability.Tracer, metrics *observability.Metrics) *Manager {
	m.tracer = tracer
	m.metrics = metrics
	return m
}

// providerForModelFamily maps a model family string to the AuthProvider key
// that owns its credentials. This is a naming convention, not a parser: it
// only needs to distinguish the handful of providers ModelClient supports.
func providerForModelFamily(family string) string {
	lower := strings.ToLower(family)
	switch {
	case strings.Contains(lower, "claude"):
		return "anthropic"
	case strings.Contains(lower, "gpt"), strings.Contains(lower, "o1"), strings.Contains(lower, "o3"):
		return "openai"
	case strings.Contains(lower, "gemini"):
		return "google"
	default:
		return lower
	}
}

// NewConversation allocates a fresh conversation id, resolves the model
// family's credentials and client, instantiates a Session, and waits for
// exactly one initial SessionConfigured event before returning (spec §4.1).
// Any other first event is treated as a fatal protocol error.
func (m *Manager) NewConversation(ctx context.Context, cfg codex.SessionConfig, systemPrompt, instructions string) (codex.ConversationID, *session.Session, codex.EventMsg, error) {
	var zero codex.ConversationID

	if _, err := m.auth.Resolve(providerForModelFamily(cfg.ModelFamily)); err != nil {
		return zero, nil, codex.EventMsg{}, fmt.Errorf("convo: resolve credentials for %q: %w", cfg.ModelFamily, err)
	}
	client, err := m.registry.Resolve(cfg.ModelFamily)
	if err != nil {
		return zero, nil, codex.EventMsg{}, fmt.Errorf("convo: resolve model client: %w", err)
	}

	id := codex.NewConversationID()
	sess, err := session.New(session.Config{
		ID:            id,
		SessionConfig: cfg,
		ModelClient:   client,
		Deps:          m.deps,
		SystemPrompt:  systemPrompt,
		Instructions:  instructions,
		Logger:        m.logger,
		Tracer:        m.tracer,
		Metrics:       m.metrics,
	})
	if err != nil {
		return zero, nil, codex.EventMsg{}, fmt.Errorf("convo: start session: %w", err)
	}

	initial, err := sess.NextEvent(ctx)
	if err != nil {
		return zero, nil, codex.EventMsg{}, fmt.Errorf("convo: await initial event: %w", err)
	}
	if initial.Msg.Type != codex.EventSessionConfigured {
		return zero, nil, codex.EventMsg{}, fmt.Errorf("convo: protocol error: first event was %q, want %q", initial.Msg.Type, codex.EventSessionConfigured)
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.logger.Info("convo: conversation created", "id", id.String(), "model_family", cfg.ModelFamily)
	return id, sess, initial.Msg, nil
}

// GetConversation looks up a live Session by id.
func (m *Manager) GetConversation(id codex.ConversationID) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return sess, nil
}

// ForkConversation reads the source conversation's transcript, truncates it
// by removing the last dropLastNUserMessages user-role messages and
// everything after them, and spawns a fresh session seeded with that prefix
// (spec §4.1: "a pure prefix operation on ResponseItems; it does not replay
// tool-call side effects"). If the source has fewer than n user messages the
// new session starts with an empty transcript.
func (m *Manager) ForkConversation(ctx context.Context, sourceID codex.ConversationID, dropLastNUserMessages int, cfg codex.SessionConfig, systemPrompt, instructions string) (codex.ConversationID, *session.Session, codex.EventMsg, error) {
	src, err := m.GetConversation(sourceID)
	if err != nil {
		return codex.ConversationID{}, nil, codex.EventMsg{}, err
	}

	prefix := truncateUserPrefix(src.Transcript(), dropLastNUserMessages)

	id, sess, initialMsg, err := m.NewConversation(ctx, cfg, systemPrompt, instructions)
	if err != nil {
		return id, sess, initialMsg, err
	}
	if len(prefix) > 0 {
		sess.Seed(prefix)
	}
	m.logger.Info("convo: conversation forked", "source_id", sourceID.String(), "fork_id", id.String(), "dropped_n", dropLastNUserMessages, "seeded_items", len(prefix))
	return id, sess, initialMsg, nil
}

// DropConversation shuts down and unregisters a conversation.
func (m *Manager) DropConversation(id codex.ConversationID) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrConversationNotFound
	}
	m.logger.Info("convo: conversation dropped", "id", id.String())
	_, err := sess.Submit(codex.Submission{Op: codex.OpShutdown})
	return err
}

// truncateUserPrefix removes the last n user-role messages from transcript
// and everything that follows them. n <= 0 keeps the whole transcript.
func truncateUserPrefix(transcript []codex.ResponseItem, n int) []codex.ResponseItem {
	if n <= 0 {
		return append([]codex.ResponseItem(nil), transcript...)
	}
	var userIdx []int
	for i, item := range transcript {
		if item.IsUserMessage() {
			userIdx = append(userIdx, i)
		}
	}
	if len(userIdx) < n {
		return nil
	}
	cut := userIdx[len(userIdx)-n]
	return append([]codex.ResponseItem(nil), transcript[:cut]...)
}
