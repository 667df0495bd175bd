// Package turn implements TurnRuntime, the subsystem that drives one turn
// to completion: composing model requests, consuming the streamed response,
// and dispatching tool calls through the parallel-or-serial scheduler
// described in spec §4.3. The concurrency primitives are grounded on the
// teacher's internal/agent/tool_exec.go (ToolExecutor.ExecuteConcurrently's
// semaphore-bounded goroutine fan-out with index-preserving result slots,
// and ExecuteSequentially for the serial path), generalized to add the
// read-only/mutating serial-mode gate the teacher's executor does not have:
// the teacher always runs concurrently or always sequentially, never
// switching mid-batch based on per-call classification.
package turn

import (
	"context"
	"errors"

	"github.com/codexrun/agentcore/internal/toolrouter"
	"github.com/codexrun/agentcore/pkg/codex"
)

// FatalToolError wraps a tool dispatch error that must abort the whole
// turn rather than just that one call.
type FatalToolError struct {
	Err error
}

func (e *FatalToolError) Error() string { return e.Err.Error() }
func (e *FatalToolError) Unwrap() error { return e.Err }

// IsFatal reports whether err is (or wraps) a FatalToolError.
func IsFatal(err error) bool {
	var fe *FatalToolError
	return errors.As(err, &fe)
}

// CallResult is the outcome of dispatching one tool call, kept at its
// original batch index so the merge back into the transcript preserves
// call order regardless of completion order.
type CallResult struct {
	Index  int
	Call   codex.ToolCall
	Output toolrouter.ToolOutput
	Err    error
}

// Dispatcher is the function the scheduler calls to actually run one tool
// call; in production this is Router.Dispatch, wrapped to build the
// toolrouter.Invocation from a codex.ToolCall.
type Dispatcher func(ctx context.Context, call codex.ToolCall) (toolrouter.ToolOutput, error)

// Scheduler implements the parallel-or-serial dispatch algorithm from spec
// §4.3. It holds no state between RunBatch calls; TurnRuntime constructs
// one per turn (or reuses one across the turn's streamed batches, since it
// is stateless).
type Scheduler struct {
	classify func(toolName string) toolrouter.Kind
}

// NewScheduler builds a Scheduler that classifies tool calls via router.
func NewScheduler(router *toolrouter.Router) *Scheduler {
	return &Scheduler{classify: router.KindOf}
}

type pendingTask struct {
	index int
	done  chan struct{}
	result CallResult
}

// RunBatch dispatches calls per the scheduler's serial_mode gate: read-only
// calls run concurrently while serial_mode is false; the first Mutating
// call (or any call once serial_mode has flipped) first resolves every
// pending parallel task in arrival order, then runs synchronously. Any
// pending parallel tasks remaining when the batch is exhausted are resolved
// before RunBatch returns, so the caller always sees a fully-resolved,
// index-ordered result slice.
//
// A FatalToolError from any call cancels every other in-flight task via ctx
// and is returned immediately; results already resolved at that point are
// still populated in the returned slice.
func (s *Scheduler) RunBatch(ctx context.Context, calls []codex.ToolCall, dispatch Dispatcher) ([]CallResult, error) {
	results := make([]CallResult, len(calls))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var pending []*pendingTask
	serialMode := false

	resolvePending := func() error {
		for _, t := range pending {
			<-t.done
			results[t.index] = t.result
			if t.result.Err != nil && IsFatal(t.result.Err) {
				cancel()
				pending = nil
				return t.result.Err
			}
		}
		pending = nil
		return nil
	}

	for i, call := range calls {
		kind := s.classify(call.ToolName)

		if !serialMode && kind == toolrouter.ReadOnly {
			task := &pendingTask{index: i, done: make(chan struct{})}
			pending = append(pending, task)
			go func(idx int, c codex.ToolCall, t *pendingTask) {
				defer close(t.done)
				out, err := dispatch(ctx, c)
				t.result = CallResult{Index: idx, Call: c, Output: out, Err: err}
			}(i, call, task)
			continue
		}

		serialMode = true
		if err := resolvePending(); err != nil {
			return results, err
		}

		out, err := dispatch(ctx, call)
		results[i] = CallResult{Index: i, Call: call, Output: out, Err: err}
		if err != nil && IsFatal(err) {
			cancel()
			return results, err
		}
	}

	if err := resolvePending(); err != nil {
		return results, err
	}
	return results, nil
}
