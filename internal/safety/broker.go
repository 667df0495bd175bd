package safety

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codexrun/agentcore/pkg/codex"
)

// ErrAborted is returned to a caller awaiting a decision when the operator
// sends ReviewAbort.
var ErrAborted = errors.New("safety: turn aborted by operator")

// PendingApproval represents one outstanding ApplyPatchApprovalRequest or
// ExecApprovalRequest awaiting a ReviewDecision from the UI.
type PendingApproval struct {
	ApprovalID string
	CallID     string
	CreatedAt  time.Time

	decisionCh chan codex.ReviewDecision
}

// ApprovalBroker owns the async channel pairs carrying approval requests to
// the UI and receiving ReviewDecision back, per spec §4.5. It is the
// session-scoped counterpart to the pure SafetyPolicy.Assess function.
type ApprovalBroker struct {
	mu       sync.Mutex
	pending  map[string]*PendingApproval
	cache    *ApprovedCache
	emit     func(codex.EventMsg)
	nextID   int
}

// NewApprovalBroker constructs a broker that emits ApplyPatchApprovalRequest/
// ExecApprovalRequest events via emit and reuses cache for
// ApprovedForSession bookkeeping.
func NewApprovalBroker(cache *ApprovedCache, emit func(codex.EventMsg)) *ApprovalBroker {
	if cache == nil {
		cache = NewApprovedCache()
	}
	return &ApprovalBroker{
		pending: make(map[string]*PendingApproval),
		cache:   cache,
		emit:    emit,
	}
}

// RequestExecApproval suspends until a ReviewDecision arrives for the given
// shell call, or ctx is cancelled.
func (b *ApprovalBroker) RequestExecApproval(ctx context.Context, callID string, argv []string, reason string) (codex.ReviewDecision, error) {
	return b.request(ctx, codex.EventExecApprovalRequest, callID, reason, argv, nil)
}

// RequestPatchApproval suspends until a ReviewDecision arrives for the given
// patch application, or ctx is cancelled.
func (b *ApprovalBroker) RequestPatchApproval(ctx context.Context, callID string, changedFiles []string, reason string) (codex.ReviewDecision, error) {
	return b.request(ctx, codex.EventApplyPatchApprovalReq, callID, reason, nil, changedFiles)
}

func (b *ApprovalBroker) request(ctx context.Context, evt codex.EventType, callID, reason string, argv []string, changes []string) (codex.ReviewDecision, error) {
	b.mu.Lock()
	b.nextID++
	approvalID := fmt.Sprintf("approval-%d", b.nextID)
	pa := &PendingApproval{
		ApprovalID: approvalID,
		CallID:     callID,
		CreatedAt:  time.Now(),
		decisionCh: make(chan codex.ReviewDecision, 1),
	}
	b.pending[approvalID] = pa
	emit := b.emit
	b.mu.Unlock()

	if emit != nil {
		emit(codex.EventMsg{
			Type:       evt,
			CallID:     callID,
			ApprovalID: approvalID,
			Reason:     reason,
			Command:    argv,
			Changes:    changes,
			Timestamp:  time.Now(),
		})
	}

	select {
	case decision := <-pa.decisionCh:
		if decision == codex.ReviewApprovedForSession && len(argv) > 0 {
			b.cache.Record(argv)
		}
		if decision == codex.ReviewAbort {
			return decision, ErrAborted
		}
		return decision, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, approvalID)
		b.mu.Unlock()
		return codex.ReviewDenied, ctx.Err()
	}
}

// Decide delivers a ReviewDecision for a previously issued approval request.
// It is the entry point the Session calls when the UI answers.
func (b *ApprovalBroker) Decide(approvalID string, decision codex.ReviewDecision) error {
	b.mu.Lock()
	pa, ok := b.pending[approvalID]
	if ok {
		delete(b.pending, approvalID)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("safety: no pending approval %q", approvalID)
	}
	pa.decisionCh <- decision
	return nil
}

// RecordApproval adds argv directly to the session-approved cache, e.g. for
// Session.record_approval (spec §4.2).
func (b *ApprovalBroker) RecordApproval(argv []string) {
	b.cache.Record(argv)
}

// Cache exposes the broker's approved-command cache for SafetyPolicy.Assess.
func (b *ApprovalBroker) Cache() *ApprovedCache {
	return b.cache
}
