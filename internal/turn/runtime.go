package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codexrun/agentcore/internal/modelclient"
	"github.com/codexrun/agentcore/internal/observability"
	"github.com/codexrun/agentcore/internal/safety"
	"github.com/codexrun/agentcore/internal/toolrouter"
	"github.com/codexrun/agentcore/pkg/codex"
)

// Hooks is the narrow surface TurnRuntime needs from its owning Session for
// the duration of one turn. Defining the interface here rather than
// importing internal/session breaks the Session/TurnRuntime reference
// cycle spec §9's design notes call out ("Cycle between Session and
// TurnRuntime: break by borrow"): Session implements Hooks and lends itself
// to the Runtime for one Run call, instead of the two packages importing
// each other.
type Hooks interface {
	// Emit forwards an EventMsg to the session's event queue.
	Emit(codex.EventMsg)
	// AppendTranscript appends one item to the session's transcript.
	AppendTranscript(codex.ResponseItem)
	// Transcript returns the current transcript snapshot (rolled up into
	// the next model request).
	Transcript() []codex.ResponseItem
	// DrainMailbox removes and returns every item queued by late-arriving
	// user inputs since the last drain.
	DrainMailbox() []codex.ResponseItem
	// RequestExecApproval suspends until a ReviewDecision for a shell call
	// arrives, or ctx is cancelled.
	RequestExecApproval(ctx context.Context, callID string, argv []string, reason string) (codex.ReviewDecision, error)
	// RequestPatchApproval suspends until a ReviewDecision for a patch
	// application arrives, or ctx is cancelled.
	RequestPatchApproval(ctx context.Context, callID string, changedFiles []string, reason string) (codex.ReviewDecision, error)
	// RecordApproval adds argv to the session-approved cache directly
	// (Session.record_approval, spec §4.2).
	RecordApproval(argv []string)
	// SnapshotUndo captures a ghost snapshot before the first mutating
	// tool call of the turn commits.
	SnapshotUndo() error
}

// TurnContext is the frozen per-turn configuration snapshot TurnRuntime.Run
// is given (spec §4.3: "a TurnContext (frozen snapshot of config for this
// turn)").
type TurnContext struct {
	SessionID    string
	Config       codex.SessionConfig
	Router       *toolrouter.Router
	ModelClient  modelclient.Client
	RetryConfig  modelclient.RetryConfig
	Tracer       *observability.Tracer
	Metrics      *observability.Metrics
	SystemPrompt string
}

// Runtime drives one turn to completion per spec §4.3: compose request,
// consume the stream, dispatch tool calls through the scheduler, merge
// results, and loop until the model reports completion with no outstanding
// work. Grounded on the teacher's internal/agent/loop.go turn loop,
// generalized around the explicit ReadOnly/Mutating scheduler gate (see
// scheduler.go) the teacher's always-parallel executor lacks.
type Runtime struct {
	scheduler *Scheduler
}

// New builds a Runtime bound to turnCtx.Router's tool classification.
func New(router *toolrouter.Router) *Runtime {
	return &Runtime{scheduler: NewScheduler(router)}
}

// Run drives initial (the submitted user input, rolled into a
// ResponseInputItem per spec terminology) through the compose/stream/
// dispatch loop until TaskComplete, a fatal tool error, a stream error, or
// ctx cancellation.
func (rt *Runtime) Run(ctx context.Context, hooks Hooks, turnCtx TurnContext, broker *safety.ApprovalBroker, initial []codex.ResponseItem) error {
	hooks.Emit(codex.EventMsg{Type: codex.EventTaskStarted, Timestamp: time.Now()})

	pending := initial
	mutatedOnce := false
	dispatch := rt.buildDispatcher(hooks, turnCtx, broker, &mutatedOnce)

	for {
		for _, item := range pending {
			hooks.AppendTranscript(item)
		}

		req := composeRequest(hooks.Transcript(), turnCtx)

		streamCh, err := modelclient.StreamWithRetry(ctx, turnCtx.ModelClient, req, turnCtx.RetryConfig, turnCtx.Tracer)
		if err != nil {
			return rt.fail(hooks, err)
		}

		calls, lastText, completed, err := rt.consumeStream(ctx, hooks, streamCh)
		if err != nil {
			return rt.fail(hooks, err)
		}

		if lastText != "" {
			hooks.AppendTranscript(codex.ResponseItem{Kind: codex.ItemMessage, Role: codex.RoleAssistant, Content: lastText})
		}

		var results []CallResult
		if len(calls) > 0 {
			results, err = rt.scheduler.RunBatch(ctx, calls, dispatch)
			for _, r := range results {
				rt.mergeToolResult(hooks, r)
			}
			if err != nil {
				if IsFatal(err) {
					hooks.Emit(codex.EventMsg{Type: codex.EventTurnAborted, AbortReason: codex.AbortFatalError, Timestamp: time.Now()})
					return err
				}
				return rt.fail(hooks, err)
			}
		}

		mailboxItems := hooks.DrainMailbox()

		if completed && len(calls) == 0 && len(mailboxItems) == 0 {
			hooks.Emit(codex.EventMsg{Type: codex.EventTaskComplete, Text: lastText, Timestamp: time.Now()})
			return nil
		}

		pending = nil
		for _, r := range results {
			pending = append(pending, toolResultItem(r))
		}
		pending = append(pending, mailboxItems...)

		select {
		case <-ctx.Done():
			hooks.Emit(codex.EventMsg{Type: codex.EventTurnAborted, AbortReason: codex.AbortInterrupted, Timestamp: time.Now()})
			return ctx.Err()
		default:
		}
	}
}

func (rt *Runtime) fail(hooks Hooks, err error) error {
	hooks.Emit(codex.EventMsg{Type: codex.EventError, ErrorMessage: err.Error(), Timestamp: time.Now()})
	return err
}

// consumeStream drains streamCh, forwarding text/reasoning deltas, recording
// tool calls, and reporting whether the stream ended with EventKindComplete
// (spec §4.3 step 2's four outcomes).
func (rt *Runtime) consumeStream(ctx context.Context, hooks Hooks, streamCh <-chan modelclient.StreamEvent) ([]codex.ToolCall, string, bool, error) {
	var calls []codex.ToolCall
	var text string
	var completed bool

	for {
		select {
		case <-ctx.Done():
			return calls, text, completed, ctx.Err()
		case ev, ok := <-streamCh:
			if !ok {
				return calls, text, completed, nil
			}
			switch ev.Kind {
			case modelclient.EventKindText:
				text += ev.TextDelta
				hooks.Emit(codex.EventMsg{Type: codex.EventAgentMessageDelta, Text: ev.TextDelta, Timestamp: time.Now()})
			case modelclient.EventKindReasoning:
				hooks.Emit(codex.EventMsg{Type: codex.EventAgentReasoningDelta, Text: ev.TextDelta, Timestamp: time.Now()})
			case modelclient.EventKindToolCall:
				if ev.ToolCall == nil {
					continue
				}
				hooks.AppendTranscript(codex.ResponseItem{
					Kind:      codex.ItemFunctionCall,
					Name:      ev.ToolCall.ToolName,
					Arguments: ev.ToolCall.Args,
					CallID:    ev.ToolCall.CallID,
				})
				calls = append(calls, *ev.ToolCall)
			case modelclient.EventKindComplete:
				completed = true
				hooks.Emit(codex.EventMsg{
					Type:         codex.EventTokenCount,
					InputTokens:  ev.InputTokens,
					OutputTokens: ev.OutputTokens,
					Timestamp:    time.Now(),
				})
				return calls, text, completed, nil
			case modelclient.EventKindError:
				return calls, text, completed, ev.Err
			}
		}
	}
}

func (rt *Runtime) mergeToolResult(hooks Hooks, r CallResult) {
	success := r.Err == nil && r.Output.Success
	content := r.Output.Content
	if r.Err != nil {
		content = r.Err.Error()
	}
	hooks.AppendTranscript(codex.ResponseItem{
		Kind:          codex.ItemFunctionCallOutput,
		CallID:        r.Call.CallID,
		OutputContent: content,
		Success:       success,
	})
}

func toolResultItem(r CallResult) codex.ResponseItem {
	success := r.Err == nil && r.Output.Success
	content := r.Output.Content
	if r.Err != nil {
		content = r.Err.Error()
	}
	return codex.ResponseItem{
		Kind:          codex.ItemFunctionCallOutput,
		CallID:        r.Call.CallID,
		OutputContent: content,
		Success:       success,
	}
}

// composeRequest rolls the transcript up into a CompletionRequest (spec
// §4.3 step 1).
func composeRequest(transcript []codex.ResponseItem, turnCtx TurnContext) modelclient.CompletionRequest {
	messages := make([]modelclient.CompletionMessage, 0, len(transcript))
	for _, item := range transcript {
		switch item.Kind {
		case codex.ItemMessage:
			if item.Role == codex.RoleSystem {
				continue
			}
			role := modelclient.RoleUser
			if item.Role == codex.RoleAssistant {
				role = modelclient.RoleAssistant
			}
			messages = append(messages, modelclient.CompletionMessage{Role: role, Content: item.Content})
		case codex.ItemFunctionCall:
			messages = append(messages, modelclient.CompletionMessage{
				Role: modelclient.RoleAssistant,
				ToolCalls: []codex.ToolCall{{
					ToolName: item.Name,
					CallID:   item.CallID,
					Kind:     codex.PayloadFunction,
					Args:     item.Arguments,
				}},
			})
		case codex.ItemFunctionCallOutput:
			messages = append(messages, modelclient.CompletionMessage{
				Role: modelclient.RoleTool,
				ToolResults: []modelclient.ToolResult{{
					ToolCallID: item.CallID,
					Content:    item.OutputContent,
					IsError:    !item.Success,
				}},
			})
		}
	}

	return modelclient.CompletionRequest{
		Model:    turnCtx.Config.ModelFamily,
		System:   turnCtx.SystemPrompt,
		Messages: messages,
		Tools:    toolDefinitions(turnCtx.Router),
	}
}

func toolDefinitions(router *toolrouter.Router) []modelclient.ToolDefinition {
	names := router.Names()
	defs := make([]modelclient.ToolDefinition, 0, len(names))
	for _, name := range names {
		tool, ok := router.Get(name)
		if !ok {
			continue
		}
		defs = append(defs, modelclient.ToolDefinition{Name: name, Schema: tool.Schema()})
	}
	return defs
}

// buildDispatcher wraps turnCtx.Router.Dispatch with the safety/approval
// gate (spec §4.5) and ghost-snapshot-before-first-mutation (spec §4.7).
func (rt *Runtime) buildDispatcher(hooks Hooks, turnCtx TurnContext, broker *safety.ApprovalBroker, mutatedOnce *bool) Dispatcher {
	return func(ctx context.Context, call codex.ToolCall) (toolrouter.ToolOutput, error) {
		kind := turnCtx.Router.KindOf(call.ToolName)

		if kind == toolrouter.Mutating && !*mutatedOnce {
			if err := hooks.SnapshotUndo(); err != nil {
				return toolrouter.ToolOutput{}, &FatalToolError{Err: fmt.Errorf("turn: ghost snapshot failed: %w", err)}
			}
			*mutatedOnce = true
		}

		action, needsSafety := classifyAction(call, turnCtx.Config.Cwd)
		if needsSafety {
			check := safety.Assess(action.Action, turnCtx.Config.ApprovalPolicy, turnCtx.Config.SandboxPolicy, broker.Cache(), action.withEscalated)
			switch check.Decision {
			case safety.DecisionReject:
				return toolrouter.ToolOutput{Kind: toolrouter.OutputFunction, Content: check.Reason, Success: false}, nil
			case safety.DecisionAskUser:
				decision, err := requestApproval(ctx, hooks, action, call.CallID, check.Reason)
				if err != nil {
					return toolrouter.ToolOutput{}, &FatalToolError{Err: err}
				}
				switch decision {
				case codex.ReviewDenied:
					return toolrouter.ToolOutput{Kind: toolrouter.OutputFunction, Content: "denied by operator", Success: false}, nil
				case codex.ReviewApprovedForSession:
					hooks.RecordApproval(action.Argv)
				}
			}
		}

		if turnCtx.Metrics != nil {
			start := time.Now()
			out, err := turnCtx.Router.Dispatch(ctx, invocationFor(call, turnCtx))
			status := "success"
			if err != nil || !out.Success {
				status = "error"
			}
			turnCtx.Metrics.RecordToolExecution(call.ToolName, status, time.Since(start).Seconds())
			return out, err
		}

		return turnCtx.Router.Dispatch(ctx, invocationFor(call, turnCtx))
	}
}

func invocationFor(call codex.ToolCall, turnCtx TurnContext) toolrouter.Invocation {
	return toolrouter.Invocation{
		CallID:        call.CallID,
		ToolName:      call.ToolName,
		Params:        call.Args,
		Cwd:           turnCtx.Config.Cwd,
		SandboxPolicy: turnCtx.Config.SandboxPolicy,
		SessionID:     turnCtx.SessionID,
	}
}

func requestApproval(ctx context.Context, hooks Hooks, action safetyAction, callID, reason string) (codex.ReviewDecision, error) {
	if action.Kind == safety.ActionPatch {
		return hooks.RequestPatchApproval(ctx, callID, action.AffectedFiles, reason)
	}
	return hooks.RequestExecApproval(ctx, callID, action.Argv, reason)
}

// safetyAction bundles safety.Action with the with-escalated-permissions
// flag the pure Assess function also needs, without widening
// safety.Action's own field set.
type safetyAction struct {
	safety.Action
	withEscalated bool
}

// shellParams is the subset of toolrouter.ShellParams classifyAction needs
// to decode from a model-issued call's raw args.
type shellParams struct {
	Command                  []string `json:"command"`
	Cwd                       string   `json:"workdir"`
	WithEscalatedPermissions bool     `json:"with_escalated_permissions"`
}

// classifyAction recognizes the shell and apply-patch tool families and
// builds the safety.Action to assess for them. Other tools (plan,
// web_search, view_image, MCP) are not exec-shaped and bypass the safety
// gate entirely. Patch AffectedFiles extraction from diff text is left
// empty: diff/patch parsing is an explicit Non-goal (spec §1), so the
// assessment conservatively treats an apply_patch call as having no
// affected files, which means it is handled the same as a cwd-scoped write.
func classifyAction(call codex.ToolCall, cwd string) (safetyAction, bool) {
	switch call.ToolName {
	case "shell", "shell_streamable", "exec":
		var p shellParams
		_ = json.Unmarshal(call.Args, &p)
		workdir := cwd
		if p.Cwd != "" {
			workdir = p.Cwd
		}
		return safetyAction{
			Action:        safety.Action{Kind: safety.ActionShell, Cwd: workdir, Argv: p.Command},
			withEscalated: p.WithEscalatedPermissions,
		}, true
	case "apply_patch", "apply_patch_freeform":
		return safetyAction{Action: safety.Action{Kind: safety.ActionPatch, Cwd: cwd}}, true
	default:
		return safetyAction{}, false
	}
}
