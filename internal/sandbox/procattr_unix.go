//go:build linux || darwin

package sandbox

import (
	"os/exec"
	"syscall"

	"github.com/codexrun/agentcore/pkg/codex"
)

// applySandboxProcAttr puts the child in its own process group so the
// timeout supervisor's SIGTERM/SIGKILL reaches any grandchildren it spawns,
// not just the immediate child. RLIMIT_CORE=0 and ptrace-attach denial
// (PR_SET_DUMPABLE on Linux, PT_DENY_ATTACH on macOS) are applied by the
// platform sandbox wrapper itself (codexcore-linux-sandbox, sandbox-exec)
// before it execs argv, since os/exec has no post-fork pre-exec hook to run
// them from the parent process for unwrapped DangerFullAccess spawns those
// hygiene steps are skipped by design, matching the "no wrapping" contract.
func applySandboxProcAttr(cmd *exec.Cmd, _ codex.SandboxPolicy) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends sig to the child's whole process group.
func killProcessGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}
