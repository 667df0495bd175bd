package safety

import (
	"context"
	"testing"
	"time"

	"github.com/codexrun/agentcore/pkg/codex"
)

func TestApprovalBroker_ApprovedForSessionPopulatesCache(t *testing.T) {
	var emitted []codex.EventMsg
	broker := NewApprovalBroker(nil, func(e codex.EventMsg) { emitted = append(emitted, e) })

	resultCh := make(chan codex.ReviewDecision, 1)
	errCh := make(chan error, 1)
	go func() {
		decision, err := broker.RequestExecApproval(context.Background(), "call-1", []string{"rm", "-rf", "build"}, "cleanup")
		resultCh <- decision
		errCh <- err
	}()

	waitForPending(t, broker, 1)

	approvalID := emitted[0].ApprovalID
	if emitted[0].Type != codex.EventExecApprovalRequest {
		t.Fatalf("expected exec approval request event, got %v", emitted[0].Type)
	}
	if err := broker.Decide(approvalID, codex.ReviewApprovedForSession); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if decision := <-resultCh; decision != codex.ReviewApprovedForSession {
		t.Fatalf("expected ApprovedForSession, got %v", decision)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !broker.Cache().Contains([]string{"rm", "-rf", "build"}) {
		t.Fatal("expected argv recorded into the approved cache")
	}
}

func TestApprovalBroker_AbortReturnsErrAborted(t *testing.T) {
	broker := NewApprovalBroker(nil, func(codex.EventMsg) {})

	resultCh := make(chan error, 1)
	go func() {
		_, err := broker.RequestPatchApproval(context.Background(), "call-2", []string{"main.go"}, "apply fix")
		resultCh <- err
	}()

	waitForPending(t, broker, 1)

	var approvalID string
	broker.mu.Lock()
	for id := range broker.pending {
		approvalID = id
	}
	broker.mu.Unlock()

	if err := broker.Decide(approvalID, codex.ReviewAbort); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if err := <-resultCh; err != ErrAborted {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
}

func TestApprovalBroker_ContextCancelDenies(t *testing.T) {
	broker := NewApprovalBroker(nil, func(codex.EventMsg) {})
	ctx, cancel := context.WithCancel(context.Background())

	resultCh := make(chan codex.ReviewDecision, 1)
	errCh := make(chan error, 1)
	go func() {
		decision, err := broker.RequestExecApproval(ctx, "call-3", []string{"echo", "hi"}, "")
		resultCh <- decision
		errCh <- err
	}()

	waitForPending(t, broker, 1)
	cancel()

	if decision := <-resultCh; decision != codex.ReviewDenied {
		t.Fatalf("expected denied on context cancel, got %v", decision)
	}
	if err := <-errCh; err == nil {
		t.Fatal("expected context error")
	}
}

func TestApprovalBroker_DecideUnknownID(t *testing.T) {
	broker := NewApprovalBroker(nil, func(codex.EventMsg) {})
	if err := broker.Decide("nonexistent", codex.ReviewApproved); err == nil {
		t.Fatal("expected error deciding an unknown approval id")
	}
}

func waitForPending(t *testing.T, b *ApprovalBroker, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		count := len(b.pending)
		b.mu.Unlock()
		if count >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d pending approvals", n)
}
