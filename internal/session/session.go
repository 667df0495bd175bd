// Package session implements the Session object: the per-conversation state
// machine that accepts Submissions, drives one turn at a time through
// internal/turn, and exposes the ordered event stream an external driver
// consumes via NextEvent. See spec §4.2.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codexrun/agentcore/internal/compaction"
	"github.com/codexrun/agentcore/internal/modelclient"
	"github.com/codexrun/agentcore/internal/observability"
	"github.com/codexrun/agentcore/internal/rollout"
	"github.com/codexrun/agentcore/internal/safety"
	"github.com/codexrun/agentcore/internal/sandbox"
	"github.com/codexrun/agentcore/internal/toolrouter"
	"github.com/codexrun/agentcore/internal/turn"
	"github.com/codexrun/agentcore/pkg/codex"
)

// State is one node of the session's Idle/TurnActive/Aborting/Failed state
// machine (spec §4.2).
type State string

const (
	StateIdle       State = "idle"
	StateTurnActive State = "turn_active"
	StateAborting   State = "aborting"
	StateFailed     State = "failed"
)

// ErrSessionClosed is returned by Submit and NextEvent once the session has
// finished shutting down.
var ErrSessionClosed = errors.New("session: closed")

const (
	submissionQueueCapacity = 64
	eventQueueCapacity      = 256
)

// Config bundles the collaborators a Session needs. ModelClient and Deps
// are required; the rest fall back to sane defaults.
type Config struct {
	ID           codex.ConversationID
	SessionConfig codex.SessionConfig
	ModelClient  modelclient.Client
	Deps         toolrouter.Dependencies
	SystemPrompt string
	Instructions string
	Logger       *slog.Logger
	Tracer       *observability.Tracer
	Metrics      *observability.Metrics
}

// Session is the core per-conversation runtime object. One top-level mutex
// (mu) guards the state machine, the live config, and the active turn's
// cancel func; the transcript and mailbox each get their own mutex so a
// running turn can append to the transcript without contending with a
// concurrent Submit. Mirrors the teacher's per-session locking discipline
// (Runtime.lockSession) generalized to three independently-locked regions.
type Session struct {
	id        codex.ConversationID
	createdAt time.Time
	logger    *slog.Logger

	mu              sync.Mutex
	state           State
	config          codex.SessionConfig
	pendingOverride *codex.OverrideTurnContext
	currentSubID    string
	turnCancel      context.CancelFunc

	transcriptMu sync.RWMutex
	transcript   []codex.ResponseItem

	mailboxMu sync.Mutex
	mailbox   []codex.ResponseItem

	submissionCh chan codex.Submission
	eventCh      chan codex.Event
	stopCh       chan struct{}
	wg           sync.WaitGroup

	modelClient  modelclient.Client
	deps         toolrouter.Dependencies
	systemPrompt string

	broker   *safety.ApprovalBroker
	recorder *rollout.Recorder
	undo     *rollout.UndoManager
	tracer   *observability.Tracer
	tracerStop func(context.Context) error
	metrics  *observability.Metrics
}

// New constructs a Session and starts its submission-processing loop. It
// blocks only long enough to open the rollout file and write the session
// metadata record; the first event on the returned Session's NextEvent
// stream is always a SessionConfigured event (spec §4.1/§6).
func New(cfg Config) (*Session, error) {
	if cfg.ModelClient == nil {
		return nil, errors.New("session: Config.ModelClient is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	var tracerStop func(context.Context) error
	if tracer == nil {
		tracer, tracerStop = observability.NewTracer(observability.TraceConfig{ServiceName: "codexcore"})
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	deps := cfg.Deps
	if deps.Sandbox == nil {
		deps.Sandbox = sandbox.NewExecutor()
	}

	codexHome := cfg.SessionConfig.CodexHome
	rec, err := rollout.New(codexHome, cfg.ID, cfg.Instructions, logger)
	if err != nil {
		return nil, fmt.Errorf("session: start rollout recorder: %w", err)
	}

	s := &Session{
		id:           cfg.ID,
		createdAt:    time.Now(),
		logger:       logger,
		state:        StateIdle,
		config:       cfg.SessionConfig.Clone(),
		submissionCh: make(chan codex.Submission, submissionQueueCapacity),
		eventCh:      make(chan codex.Event, eventQueueCapacity),
		stopCh:       make(chan struct{}),
		modelClient:  cfg.ModelClient,
		deps:         deps,
		systemPrompt: cfg.SystemPrompt,
		recorder:     rec,
		undo:         rollout.NewUndoManager(codexHome, cfg.SessionConfig.Cwd, logger),
		tracer:       tracer,
		tracerStop:   tracerStop,
		metrics:      metrics,
	}
	s.broker = safety.NewApprovalBroker(nil, s.emitUnrouted)

	metrics.SessionStarted()

	// The SessionConfigured event carries no submission id; it is the one
	// event emitted before any Submission is ever accepted.
	s.eventCh <- codex.Event{Msg: codex.EventMsg{
		Type:           codex.EventSessionConfigured,
		ConversationID: s.id,
		Model:          s.config.ModelFamily,
		Timestamp:      time.Now(),
	}}

	go s.run()
	return s, nil
}

// ID returns the conversation id this session was created for.
func (s *Session) ID() codex.ConversationID { return s.id }

// State reports the current state-machine node.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a snapshot copy of the accumulated transcript.
func (s *Session) Transcript() []codex.ResponseItem {
	s.transcriptMu.RLock()
	defer s.transcriptMu.RUnlock()
	out := make([]codex.ResponseItem, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Submit enqueues a Submission. It never blocks on turn completion: if the
// session is Idle it starts a new turn; if TurnActive, user-input items are
// queued to the turn's mailbox and every other op is processed by the loop
// directly. Returns the submission id (generated if sub.ID is empty).
func (s *Session) Submit(sub codex.Submission) (string, error) {
	select {
	case <-s.stopCh:
		return "", ErrSessionClosed
	default:
	}
	if sub.ID == "" {
		sub.ID = codex.NewConversationID().String()
	}
	select {
	case s.submissionCh <- sub:
		return sub.ID, nil
	case <-s.stopCh:
		return "", ErrSessionClosed
	}
}

// NextEvent blocks until the next event is available, ctx is done, or the
// session closes.
func (s *Session) NextEvent(ctx context.Context) (codex.Event, error) {
	select {
	case ev, ok := <-s.eventCh:
		if !ok {
			return codex.Event{}, ErrSessionClosed
		}
		return ev, nil
	case <-ctx.Done():
		return codex.Event{}, ctx.Err()
	}
}

// run is the session's single-goroutine submission loop: every state
// transition and every mailbox/transcript mutation that is not made from
// within an active turn's goroutine happens here, so there is exactly one
// writer deciding "what happens next" at a time. It is not tracked by s.wg,
// which covers only the per-turn goroutines startTurn spawns; handleShutdown
// waits on those, then returns, ending this loop.
func (s *Session) run() {
	for sub := range s.submissionCh {
		switch sub.Op {
		case codex.OpUserInput, codex.OpUserTurn:
			s.handleUserSubmission(sub)
		case codex.OpInterrupt:
			s.handleInterrupt()
		case codex.OpOverrideTurnContext:
			s.mu.Lock()
			s.pendingOverride = sub.Override
			s.mu.Unlock()
		case codex.OpGetConversationPath:
			path := ""
			if s.recorder != nil {
				path = s.recorder.Path()
			}
			s.emitFor(sub.ID, codex.EventMsg{Type: codex.EventBackgroundEvent, Text: path, Timestamp: time.Now()})
		case codex.OpUndoLastSnapshot:
			s.handleUndo(sub)
		case codex.OpReview:
			s.handleReview(sub)
		case codex.OpCompact:
			s.handleCompact(sub)
		case codex.OpShutdown:
			s.handleShutdown()
			return
		default:
			s.emitFor(sub.ID, codex.EventMsg{Type: codex.EventError, ErrorMessage: fmt.Sprintf("unknown op %q", sub.Op), Timestamp: time.Now()})
		}
	}
}

func (s *Session) handleUserSubmission(sub codex.Submission) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.mailboxMu.Lock()
		s.mailbox = append(s.mailbox, sub.Items...)
		s.mailboxMu.Unlock()
		return
	}
	if s.pendingOverride != nil {
		s.config = s.pendingOverride.Apply(s.config)
		s.pendingOverride = nil
	}
	cfg := s.config.Clone()
	if sub.Op == codex.OpUserTurn && sub.Override != nil {
		cfg = sub.Override.Apply(cfg)
	}
	s.state = StateTurnActive
	s.currentSubID = sub.ID
	s.mu.Unlock()

	s.startTurn(s, cfg, sub.Items, nil)
}

func (s *Session) handleInterrupt() {
	s.mu.Lock()
	if s.state != StateTurnActive {
		s.mu.Unlock()
		return
	}
	s.state = StateAborting
	cancel := s.turnCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) handleUndo(sub codex.Submission) {
	err := s.undo.UndoLast()
	msg := "undo applied"
	if err != nil {
		msg = err.Error()
	}
	s.emitFor(sub.ID, codex.EventMsg{Type: codex.EventBackgroundEvent, Text: msg, Timestamp: time.Now()})
}

// reviewHooks runs a review sub-turn against its own throwaway transcript
// instead of the session's main one: the reviewer's back-and-forth is not
// part of the conversation it is reviewing (spec §9 "nested sub-turn").
// Approvals, snapshots, and events still flow through the owning Session.
type reviewHooks struct {
	*Session
	mu         sync.Mutex
	transcript []codex.ResponseItem
}

func (h *reviewHooks) AppendTranscript(item codex.ResponseItem) {
	h.mu.Lock()
	h.transcript = append(h.transcript, item)
	h.mu.Unlock()
}

func (h *reviewHooks) Transcript() []codex.ResponseItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]codex.ResponseItem, len(h.transcript))
	copy(out, h.transcript)
	return out
}

func (h *reviewHooks) DrainMailbox() []codex.ResponseItem { return nil }

// handleReview runs a nested turn whose prompt is the review request,
// bracketed by ReviewEntered/ReviewExited events (spec §4.2's review mode).
func (s *Session) handleReview(sub codex.Submission) {
	s.emitFor(sub.ID, codex.EventMsg{Type: codex.EventReviewEntered, Text: sub.ReviewHint, Timestamp: time.Now()})

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.emitFor(sub.ID, codex.EventMsg{Type: codex.EventReviewExited, Timestamp: time.Now()})
		return
	}
	cfg := s.config.Clone()
	s.state = StateTurnActive
	s.currentSubID = sub.ID
	s.mu.Unlock()

	hooks := &reviewHooks{Session: s}
	items := []codex.ResponseItem{{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: sub.ReviewPrompt}}
	s.startTurn(hooks, cfg, items, func() {
		s.emitFor(sub.ID, codex.EventMsg{Type: codex.EventReviewExited, Timestamp: time.Now()})
	})
}

// handleCompact prunes the transcript to the session's HistoryPolicy budget
// using the teacher's token-share pruning heuristic, dropping the oldest
// messages first. No model-backed summarization is attempted here; the
// dropped items remain recoverable from the rollout file.
func (s *Session) handleCompact(sub codex.Submission) {
	s.mu.Lock()
	maxItems := s.config.HistoryPolicy.MaxItems
	s.mu.Unlock()
	if maxItems <= 0 {
		s.emitFor(sub.ID, codex.EventMsg{Type: codex.EventBackgroundEvent, Text: "compact: no history budget configured", Timestamp: time.Now()})
		return
	}

	s.transcriptMu.Lock()
	msgs := make([]*compaction.Message, len(s.transcript))
	for i, item := range s.transcript {
		msgs[i] = &compaction.Message{Role: string(item.Role), Content: item.Content, ID: item.CallID}
	}
	budget := maxItems * compaction.CharsPerToken
	result := compaction.PruneHistoryForContextShare(msgs, budget, 1.0, 1)
	if result.DroppedMessages > 0 {
		kept := s.transcript[len(s.transcript)-len(result.Messages):]
		s.transcript = append([]codex.ResponseItem(nil), kept...)
	}
	dropped := result.DroppedMessages
	s.transcriptMu.Unlock()

	s.emitFor(sub.ID, codex.EventMsg{
		Type:      codex.EventBackgroundEvent,
		Text:      fmt.Sprintf("compact: dropped %d items, kept %d tokens", dropped, result.KeptTokens),
		Timestamp: time.Now(),
	})
}

func (s *Session) handleShutdown() {
	s.mu.Lock()
	cancel := s.turnCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait() // waits for any in-flight turn goroutine startTurn spawned.
	if s.recorder != nil {
		if err := s.recorder.Shutdown(); err != nil {
			s.logger.Error("session: rollout shutdown", "error", err)
		}
	}
	if s.tracerStop != nil {
		_ = s.tracerStop(context.Background())
	}
	s.metrics.SessionEnded(time.Since(s.createdAt).Seconds())
	close(s.stopCh)
	close(s.eventCh)
}

// startTurn spawns the goroutine that drives one TurnRuntime.Run call against
// hooks (either the Session itself, or a reviewHooks wrapper for a review
// sub-turn). after, if non-nil, runs once the turn has fully settled and the
// state machine is back at Idle.
func (s *Session) startTurn(hooks turn.Hooks, cfg codex.SessionConfig, items []codex.ResponseItem, after func()) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.turnCancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		router := toolrouter.NewRouter(cfg.EnabledTools, s.deps)
		turnCtx := turn.TurnContext{
			SessionID:    s.id.String(),
			Config:       cfg,
			Router:       router,
			ModelClient:  s.modelClient,
			RetryConfig:  modelclient.DefaultRetryConfig(),
			Tracer:       s.tracer,
			Metrics:      s.metrics,
			SystemPrompt: s.systemPrompt,
		}
		rt := turn.New(router)
		err := rt.Run(ctx, hooks, turnCtx, s.broker, items)

		s.mu.Lock()
		wasAborting := s.state == StateAborting
		if err != nil && !errors.Is(err, context.Canceled) && !wasAborting {
			s.state = StateFailed
			s.logger.Error("session: turn failed", "session_id", s.id.String(), "error", err)
		} else {
			s.state = StateIdle
		}
		s.turnCancel = nil
		s.mu.Unlock()

		if after != nil {
			after()
		}
	}()
}

func (s *Session) emitFor(subID string, msg codex.EventMsg) {
	select {
	case s.eventCh <- codex.Event{ID: subID, Msg: msg}:
	case <-s.stopCh:
	}
}

// emitUnrouted is handed to the ApprovalBroker as its emit callback; approval
// requests are not associated with a particular Submission, so they are
// emitted against the turn's originating submission id.
func (s *Session) emitUnrouted(msg codex.EventMsg) {
	s.mu.Lock()
	id := s.currentSubID
	s.mu.Unlock()
	s.emitFor(id, msg)
}

// The methods below implement turn.Hooks, letting Session hand itself to
// TurnRuntime.Run as a borrowed reference for the duration of one turn
// (spec §9's Session/TurnRuntime cycle, broken by narrowing to an interface
// instead of a bidirectional import).

func (s *Session) Emit(msg codex.EventMsg) {
	s.emitUnrouted(msg)
}

func (s *Session) AppendTranscript(item codex.ResponseItem) {
	s.transcriptMu.Lock()
	s.transcript = append(s.transcript, item)
	s.transcriptMu.Unlock()
	if s.recorder != nil {
		s.recorder.RecordItems([]codex.ResponseItem{item})
	}
}

func (s *Session) DrainMailbox() []codex.ResponseItem {
	s.mailboxMu.Lock()
	defer s.mailboxMu.Unlock()
	out := s.mailbox
	s.mailbox = nil
	return out
}

func (s *Session) RequestExecApproval(ctx context.Context, callID string, argv []string, reason string) (codex.ReviewDecision, error) {
	return s.broker.RequestExecApproval(ctx, callID, argv, reason)
}

func (s *Session) RequestPatchApproval(ctx context.Context, callID string, changedFiles []string, reason string) (codex.ReviewDecision, error) {
	return s.broker.RequestPatchApproval(ctx, callID, changedFiles, reason)
}

func (s *Session) RecordApproval(argv []string) {
	s.broker.RecordApproval(argv)
}

func (s *Session) SnapshotUndo() error {
	return s.undo.Snapshot()
}

// UndoLast restores the most recent ghost snapshot, per spec §4.2/§4.7. It
// is safe to call regardless of whether a turn is active.
func (s *Session) UndoLast() error {
	return s.undo.UndoLast()
}

// Seed appends items directly to the transcript without driving a turn,
// used by ConversationManager.ForkConversation to install a truncated
// prefix copied from the source conversation (spec §4.1: forking "does not
// replay tool-call side effects").
func (s *Session) Seed(items []codex.ResponseItem) {
	for _, item := range items {
		s.AppendTranscript(item)
	}
}

// Decide delivers a human operator's answer to a pending exec/patch approval
// request, identified by its approval id (the EventMsg.ApprovalID carried on
// the matching ExecApprovalRequest/ApplyPatchApprovalRequest event).
func (s *Session) Decide(approvalID string, decision codex.ReviewDecision) error {
	return s.broker.Decide(approvalID, decision)
}

var (
	_ turn.Hooks = (*Session)(nil)
	_ turn.Hooks = (*reviewHooks)(nil)
)
