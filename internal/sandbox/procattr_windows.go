//go:build windows

package sandbox

import (
	"os/exec"
	"syscall"

	"github.com/codexrun/agentcore/pkg/codex"
)

// applySandboxProcAttr opens a new process group on Windows so the timeout
// supervisor can terminate the whole tree via TerminateProcess on the WSL
// host, matching the spec's Windows timeout contract.
func applySandboxProcAttr(cmd *exec.Cmd, _ codex.SandboxPolicy) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}
