package codex

import "time"

// EventType tags the ~30 variants of EventMsg emitted by the core to the UI
// layer (spec §3). Only the fields relevant to Type are populated.
type EventType string

const (
	EventTaskStarted             EventType = "task_started"
	EventTaskComplete            EventType = "task_complete"
	EventAgentMessage            EventType = "agent_message"
	EventAgentMessageDelta       EventType = "agent_message_delta"
	EventAgentReasoning          EventType = "agent_reasoning"
	EventAgentReasoningDelta     EventType = "agent_reasoning_delta"
	EventExecCommandBegin        EventType = "exec_command_begin"
	EventExecCommandEnd          EventType = "exec_command_end"
	EventExecCommandOutputDelta  EventType = "exec_command_output_delta"
	EventApplyPatchApprovalReq   EventType = "apply_patch_approval_request"
	EventExecApprovalRequest     EventType = "exec_approval_request"
	EventSessionConfigured       EventType = "session_configured"
	EventTokenCount              EventType = "token_count"
	EventBackgroundEvent         EventType = "background_event"
	EventTurnAborted             EventType = "turn_aborted"
	EventError                   EventType = "error"
	EventPlanUpdate              EventType = "plan_update"
	EventConversationHistory     EventType = "conversation_history"
	EventReviewEntered           EventType = "review_entered"
	EventReviewExited            EventType = "review_exited"
)

// TurnAbortReason explains why a turn ended via EventTurnAborted.
type TurnAbortReason string

const (
	AbortInterrupted TurnAbortReason = "interrupted"
	AbortFatalError  TurnAbortReason = "fatal_error"
	AbortMaxTurns    TurnAbortReason = "max_turns"
)

// EventMsg is the tagged union of UI-facing events emitted by the core.
type EventMsg struct {
	Type EventType `json:"type"`

	// AgentMessage / AgentMessageDelta / AgentReasoning(Delta).
	Text string `json:"text,omitempty"`

	// ExecCommand*.
	CallID     string `json:"call_id,omitempty"`
	Command    []string `json:"command,omitempty"`
	Cwd        string `json:"cwd,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	OutputChunk []byte `json:"output_chunk,omitempty"`

	// ApplyPatchApprovalRequest / ExecApprovalRequest.
	ApprovalID string   `json:"approval_id,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Changes    []string `json:"changes,omitempty"`

	// SessionConfigured.
	ConversationID ConversationID `json:"conversation_id,omitempty"`
	Model          string         `json:"model,omitempty"`

	// TokenCount.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`

	// TurnAborted.
	AbortReason TurnAbortReason `json:"abort_reason,omitempty"`

	// Error.
	ErrorMessage string `json:"error_message,omitempty"`

	// PlanUpdate.
	PlanSteps []string `json:"plan_steps,omitempty"`

	// ConversationHistory.
	History []ResponseItem `json:"history,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// SubmissionOp tags the variant of a Submission sent to the core over the
// protocol CLI mode (spec §6).
type SubmissionOp string

const (
	OpUserInput            SubmissionOp = "user_input"
	OpUserTurn             SubmissionOp = "user_turn"
	OpInterrupt            SubmissionOp = "interrupt"
	OpOverrideTurnContext  SubmissionOp = "override_turn_context"
	OpGetConversationPath  SubmissionOp = "get_conversation_path"
	OpReview               SubmissionOp = "review"
	OpUndoLastSnapshot     SubmissionOp = "undo_last_snapshot"
	OpShutdown             SubmissionOp = "shutdown"
	OpCompact              SubmissionOp = "compact"
)

// Submission is one entry submitted to a Session's submission queue.
type Submission struct {
	ID string       `json:"id"`
	Op SubmissionOp `json:"op"`

	Items []ResponseItem `json:"items,omitempty"`

	// UserTurn overrides.
	Override *OverrideTurnContext `json:"override,omitempty"`

	// Review.
	ReviewPrompt string `json:"review_prompt,omitempty"`
	ReviewHint   string `json:"review_hint,omitempty"`

	DropLastNUserMessages int `json:"drop_last_n_user_messages,omitempty"`
}

// Event is the envelope returned for a Submission: {id, msg}.
type Event struct {
	ID  string   `json:"id"`
	Msg EventMsg `json:"msg"`
}

// ReviewDecision is the human operator's answer to an approval request.
type ReviewDecision string

const (
	ReviewApproved            ReviewDecision = "approved"
	ReviewApprovedForSession  ReviewDecision = "approved_for_session"
	ReviewDenied              ReviewDecision = "denied"
	ReviewAbort               ReviewDecision = "abort"
)
