// Package sandbox implements SandboxExecutor: spawning a child process under
// the strongest available platform sandbox for a given codex.SandboxPolicy,
// with environment hygiene, stdio policy, a timeout supervisor, and output
// truncation. Process lifecycle is grounded on the teacher's
// internal/tools/sandbox.Executor (exec.CommandContext, exit-code and
// deadline handling, functional-options Config); the platform sandbox
// wrapping itself is justified stdlib/os-exec code in DESIGN.md since no
// example repo ships a cross-platform seccomp/landlock/seatbelt library.
package sandbox

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/codexrun/agentcore/internal/execsafety"
	"github.com/codexrun/agentcore/pkg/codex"
)

// StdioPolicy selects how a spawned child's stdout/stderr are handled.
type StdioPolicy string

const (
	// StdioInherit is used for interactive commands invoked by the user
	// directly; the child's stdio is wired to the host terminal.
	StdioInherit StdioPolicy = "inherit"

	// StdioRedirectForShellTool streams stdout/stderr back to the model via
	// chunked output-delta events instead of the host terminal.
	StdioRedirectForShellTool StdioPolicy = "redirect_for_shell_tool"
)

// OutputChunk is one chunked piece of stdout/stderr delivered under
// StdioRedirectForShellTool.
type OutputChunk struct {
	Stream string // "stdout" or "stderr"
	Data   []byte
}

// Child is the handle returned by Spawn; Wait blocks until the process exits
// or the timeout supervisor kills it. Exactly one goroutine (waitOnce) ever
// calls cmd.Wait(); superviseTimeout and Child.Wait both read waitErr/exited
// instead of calling it themselves.
type Child struct {
	cmd       *exec.Cmd
	killGrace time.Duration
	onChunk   func(OutputChunk)

	stdoutBuf *truncatingBuffer
	stderrBuf *truncatingBuffer

	waitOnce sync.Once
	exited   chan struct{}
	waitErr  error
}

// awaitExit starts (once) the single cmd.Wait() call and returns the channel
// that closes when the process has exited.
func (c *Child) awaitExit() chan struct{} {
	c.waitOnce.Do(func() {
		go func() {
			c.waitErr = c.cmd.Wait()
			close(c.exited)
		}()
	})
	return c.exited
}

// Result is the outcome of running a Child to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// StdoutTruncated/StderrTruncated report the estimated count of tokens
	// elided by TruncateMiddle, or 0 if no truncation occurred.
	StdoutTruncatedTokens int
	StderrTruncatedTokens int
	TimedOut              bool
}

// SpawnRequest is the full input to Spawn, mirroring the spec contract
// `spawn(argv, cwd, sandbox_policy, stdio_policy, env) -> Child`.
type SpawnRequest struct {
	Argv          []string
	Cwd           string
	SandboxPolicy codex.SandboxPolicy
	Stdio         StdioPolicy
	Env           map[string]string
	Timeout       time.Duration
	// OutputByteBudget bounds combined stdout/stderr before TruncateMiddle
	// kicks in; 0 disables truncation.
	OutputByteBudget int
	// OnChunk is called for each output chunk under StdioRedirectForShellTool.
	OnChunk func(OutputChunk)
	// KillGrace is the delay between SIGTERM and SIGKILL on timeout.
	KillGrace time.Duration
}

const defaultKillGrace = 2 * time.Second

// Executor spawns sandboxed child processes per codex.SandboxPolicy.
type Executor struct{}

// NewExecutor returns a SandboxExecutor for the current host platform.
func NewExecutor() *Executor {
	return &Executor{}
}

// Spawn validates argv, applies environment hygiene, wraps the command for
// the requested sandbox policy, and starts the child process. It does not
// block; call Run to run to completion, or use the returned Child with your
// own Wait loop.
func (e *Executor) Spawn(ctx context.Context, req SpawnRequest) (*Child, error) {
	argv, err := execsafety.SanitizeArgv(req.Argv)
	if err != nil {
		return nil, err
	}

	killGrace := req.KillGrace
	if killGrace <= 0 {
		killGrace = defaultKillGrace
	}

	wrapped, err := wrapForPlatform(argv, req.SandboxPolicy, req.Cwd)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, wrapped[0], wrapped[1:]...)
	cmd.Dir = req.Cwd
	cmd.Env = hygienicEnv(req.Env)
	applySandboxProcAttr(cmd, req.SandboxPolicy)

	budget := req.OutputByteBudget
	stdoutBuf := newTruncatingBuffer(budget, "stdout", req.OnChunk)
	stderrBuf := newTruncatingBuffer(budget, "stderr", req.OnChunk)

	switch req.Stdio {
	case StdioInherit:
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	default:
		cmd.Stdout = stdoutBuf
		cmd.Stderr = stderrBuf
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	child := &Child{
		cmd:       cmd,
		killGrace: killGrace,
		onChunk:   req.OnChunk,
		stdoutBuf: stdoutBuf,
		stderrBuf: stderrBuf,
		exited:    make(chan struct{}),
	}
	child.awaitExit()

	if req.Timeout > 0 {
		go superviseTimeout(ctx, child, req.Timeout)
	}

	return child, nil
}

// Run spawns req and blocks until the child exits, the context is
// cancelled, or the timeout supervisor kills it.
func (e *Executor) Run(ctx context.Context, req SpawnRequest) (Result, error) {
	child, err := e.Spawn(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return child.Wait()
}

// Wait blocks until the child process exits and returns its result,
// including any truncated output.
func (c *Child) Wait() (Result, error) {
	<-c.awaitExit()
	err := c.waitErr

	result := Result{
		Stdout:                c.stdoutBuf.String(),
		Stderr:                c.stderrBuf.String(),
		StdoutTruncatedTokens: c.stdoutBuf.truncatedTokens,
		StderrTruncatedTokens: c.stderrBuf.truncatedTokens,
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	if c.cmd.ProcessState != nil {
		result.ExitCode = c.cmd.ProcessState.ExitCode()
	}
	return result, nil
}

// PID returns the spawned process's OS PID.
func (c *Child) PID() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}
