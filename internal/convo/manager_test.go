package convo

import (
	"context"
	"testing"

	"github.com/codexrun/agentcore/internal/authprovider"
	"github.com/codexrun/agentcore/internal/modelclient"
	"github.com/codexrun/agentcore/internal/toolrouter"
	"github.com/codexrun/agentcore/pkg/codex"
)

type fakeClient struct{ name string }

func (c fakeClient) Name() string                 { return c.name }
func (c fakeClient) Models() []modelclient.Model { return nil }

func (c fakeClient) Stream(ctx context.Context, req modelclient.CompletionRequest) (<-chan modelclient.StreamEvent, error) {
	out := make(chan modelclient.StreamEvent, 2)
	out <- modelclient.StreamEvent{Kind: modelclient.EventKindText, TextDelta: "ok"}
	out <- modelclient.StreamEvent{Kind: modelclient.EventKindComplete}
	close(out)
	return out, nil
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	auth := authprovider.New(authprovider.Config{Credentials: []authprovider.Credential{
		{Provider: "test", APIKey: "key"},
	}})
	registry := modelclient.NewRegistry()
	registry.Register(fakeClient{name: "test"})
	return New(auth, registry, toolrouter.Dependencies{}, nil)
}

func testSessionConfig(t *testing.T) codex.SessionConfig {
	t.Helper()
	return codex.SessionConfig{
		ModelFamily: "test",
		CodexHome:   t.TempDir(),
		Cwd:         t.TempDir(),
	}
}

func TestNewConversationReturnsSessionConfiguredFirst(t *testing.T) {
	m := newTestManager(t)
	id, sess, initial, err := m.NewConversation(context.Background(), testSessionConfig(t), "", "")
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	if initial.Type != codex.EventSessionConfigured {
		t.Errorf("initial event type = %v, want SessionConfigured", initial.Type)
	}
	if sess.ID() != id {
		t.Errorf("sess.ID() = %v, want %v", sess.ID(), id)
	}

	got, err := m.GetConversation(id)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if got != sess {
		t.Error("GetConversation() returned a different Session instance")
	}
}

func TestGetConversationNotFound(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.GetConversation(codex.NewConversationID()); err != ErrConversationNotFound {
		t.Errorf("GetConversation() error = %v, want ErrConversationNotFound", err)
	}
}

func TestNewConversationUnknownCredentialFails(t *testing.T) {
	m := newTestManager(t)
	cfg := testSessionConfig(t)
	cfg.ModelFamily = "unknown-provider"
	if _, _, _, err := m.NewConversation(context.Background(), cfg, "", ""); err == nil {
		t.Error("expected an error for a model family with no configured credential")
	}
}

func TestForkConversationTruncatesUserPrefix(t *testing.T) {
	m := newTestManager(t)
	id, sess, _, err := m.NewConversation(context.Background(), testSessionConfig(t), "", "")
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}

	sess.Seed([]codex.ResponseItem{
		{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: "first"},
		{Kind: codex.ItemMessage, Role: codex.RoleAssistant, Content: "reply one"},
		{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: "second"},
		{Kind: codex.ItemMessage, Role: codex.RoleAssistant, Content: "reply two"},
	})

	forkID, forkSess, initial, err := m.ForkConversation(context.Background(), id, 1, testSessionConfig(t), "", "")
	if err != nil {
		t.Fatalf("ForkConversation() error = %v", err)
	}
	if initial.Type != codex.EventSessionConfigured {
		t.Errorf("initial event type = %v, want SessionConfigured", initial.Type)
	}
	if forkID == id {
		t.Error("fork id must differ from source id")
	}

	transcript := forkSess.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("len(transcript) = %d, want 2 (first + reply one)", len(transcript))
	}
	if transcript[0].Content != "first" || transcript[1].Content != "reply one" {
		t.Errorf("unexpected forked transcript: %+v", transcript)
	}
}

func TestForkConversationDropsMoreThanAvailableYieldsEmptyPrefix(t *testing.T) {
	m := newTestManager(t)
	id, sess, _, err := m.NewConversation(context.Background(), testSessionConfig(t), "", "")
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	sess.Seed([]codex.ResponseItem{{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: "only one"}})

	_, forkSess, _, err := m.ForkConversation(context.Background(), id, 5, testSessionConfig(t), "", "")
	if err != nil {
		t.Fatalf("ForkConversation() error = %v", err)
	}
	if len(forkSess.Transcript()) != 0 {
		t.Errorf("len(transcript) = %d, want 0", len(forkSess.Transcript()))
	}
}

func TestForkConversationUnknownSource(t *testing.T) {
	m := newTestManager(t)
	if _, _, _, err := m.ForkConversation(context.Background(), codex.NewConversationID(), 0, testSessionConfig(t), "", ""); err != ErrConversationNotFound {
		t.Errorf("ForkConversation() error = %v, want ErrConversationNotFound", err)
	}
}

func TestDropConversationRemovesFromRegistry(t *testing.T) {
	m := newTestManager(t)
	id, _, _, err := m.NewConversation(context.Background(), testSessionConfig(t), "", "")
	if err != nil {
		t.Fatalf("NewConversation() error = %v", err)
	}
	if err := m.DropConversation(id); err != nil {
		t.Fatalf("DropConversation() error = %v", err)
	}
	if _, err := m.GetConversation(id); err != ErrConversationNotFound {
		t.Errorf("GetConversation() after drop error = %v, want ErrConversationNotFound", err)
	}
	if err := m.DropConversation(id); err != ErrConversationNotFound {
		t.Errorf("second DropConversation() error = %v, want ErrConversationNotFound", err)
	}
}
