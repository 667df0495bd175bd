package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codexrun/agentcore/internal/modelclient"
	"github.com/codexrun/agentcore/pkg/codex"
)

// blockingClient pauses its first Stream() call until proceed is closed, so
// tests can submit a follow-up input while a turn is still active.
type blockingClient struct {
	mu      sync.Mutex
	calls   int
	proceed chan struct{}
	started chan struct{}
}

func (c *blockingClient) Name() string                 { return "fake" }
func (c *blockingClient) Models() []modelclient.Model { return nil }

func (c *blockingClient) Stream(ctx context.Context, req modelclient.CompletionRequest) (<-chan modelclient.StreamEvent, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()

	out := make(chan modelclient.StreamEvent, 2)
	if n == 1 {
		close(c.started)
		<-c.proceed
		out <- modelclient.StreamEvent{Kind: modelclient.EventKindComplete}
	} else {
		out <- modelclient.StreamEvent{Kind: modelclient.EventKindText, TextDelta: "done"}
		out <- modelclient.StreamEvent{Kind: modelclient.EventKindComplete}
	}
	close(out)
	return out, nil
}

// immediateClient completes a turn in a single round with no tool calls.
type immediateClient struct{}

func (immediateClient) Name() string                 { return "immediate" }
func (immediateClient) Models() []modelclient.Model { return nil }

func (immediateClient) Stream(ctx context.Context, req modelclient.CompletionRequest) (<-chan modelclient.StreamEvent, error) {
	out := make(chan modelclient.StreamEvent, 2)
	out <- modelclient.StreamEvent{Kind: modelclient.EventKindText, TextDelta: "ok"}
	out <- modelclient.StreamEvent{Kind: modelclient.EventKindComplete}
	close(out)
	return out, nil
}

func newTestSession(t *testing.T, client modelclient.Client) *Session {
	t.Helper()
	s, err := New(Config{
		ID:     codex.NewConversationID(),
		ModelClient: client,
		SessionConfig: codex.SessionConfig{
			ModelFamily: "test-model",
			CodexHome:   t.TempDir(),
			Cwd:         t.TempDir(),
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func drainUntil(t *testing.T, s *Session, eventType codex.EventType) codex.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, err := s.NextEvent(ctx)
		if err != nil {
			t.Fatalf("NextEvent() error = %v, waiting for %s", err, eventType)
		}
		if ev.Msg.Type == eventType {
			return ev
		}
	}
}

func TestNewEmitsSessionConfiguredFirst(t *testing.T) {
	s := newTestSession(t, immediateClient{})
	ev := drainUntil(t, s, codex.EventSessionConfigured)
	if ev.Msg.ConversationID != s.ID() {
		t.Errorf("ConversationID = %v, want %v", ev.Msg.ConversationID, s.ID())
	}
}

func TestSubmitRunsTurnAndReturnsToIdle(t *testing.T) {
	s := newTestSession(t, immediateClient{})
	drainUntil(t, s, codex.EventSessionConfigured)

	if _, err := s.Submit(codex.Submission{
		Op:    codex.OpUserInput,
		Items: []codex.ResponseItem{{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: "hi"}},
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	drainUntil(t, s, codex.EventTaskComplete)

	deadline := time.Now().Add(time.Second)
	for s.State() != StateIdle && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("State() = %v, want Idle", got)
	}
}

func TestMailboxQueuesWhileTurnActiveAndDrainsBeforeCompletion(t *testing.T) {
	client := &blockingClient{proceed: make(chan struct{}), started: make(chan struct{})}
	s := newTestSession(t, client)
	drainUntil(t, s, codex.EventSessionConfigured)

	if _, err := s.Submit(codex.Submission{
		Op:    codex.OpUserInput,
		Items: []codex.ResponseItem{{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: "go"}},
	}); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	<-client.started
	if got := s.State(); got != StateTurnActive {
		t.Fatalf("State() = %v, want TurnActive", got)
	}

	if _, err := s.Submit(codex.Submission{
		Op:    codex.OpUserInput,
		Items: []codex.ResponseItem{{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: "follow-up"}},
	}); err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}

	close(client.proceed)
	drainUntil(t, s, codex.EventTaskComplete)

	var sawFollowUp bool
	for _, item := range s.Transcript() {
		if item.Content == "follow-up" {
			sawFollowUp = true
		}
	}
	if !sawFollowUp {
		t.Error("expected the queued follow-up item to appear in the transcript")
	}

	deadline := time.Now().Add(time.Second)
	for s.State() != StateIdle && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := s.State(); got != StateIdle {
		t.Errorf("State() = %v, want Idle", got)
	}
}

func TestInterruptMovesActiveTurnToAborting(t *testing.T) {
	client := &blockingClient{proceed: make(chan struct{}), started: make(chan struct{})}
	s := newTestSession(t, client)
	drainUntil(t, s, codex.EventSessionConfigured)

	if _, err := s.Submit(codex.Submission{
		Op:    codex.OpUserInput,
		Items: []codex.ResponseItem{{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: "go"}},
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-client.started

	if _, err := s.Submit(codex.Submission{Op: codex.OpInterrupt}); err != nil {
		t.Fatalf("Submit(interrupt) error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for s.State() == StateTurnActive && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := s.State(); got != StateAborting {
		t.Errorf("State() = %v, want Aborting", got)
	}
	close(client.proceed) // unblock the goroutine so it can exit
}

func TestShutdownClosesEventStream(t *testing.T) {
	s := newTestSession(t, immediateClient{})
	drainUntil(t, s, codex.EventSessionConfigured)

	if _, err := s.Submit(codex.Submission{Op: codex.OpShutdown}); err != nil {
		t.Fatalf("Submit(shutdown) error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, err := s.NextEvent(ctx)
		if err == ErrSessionClosed {
			return
		}
		if err != nil {
			t.Fatalf("NextEvent() error = %v, want ErrSessionClosed", err)
		}
	}
}
