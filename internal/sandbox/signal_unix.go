//go:build linux || darwin

package sandbox

import "syscall"

func signalTerminate(c *Child) {
	killProcessGroup(c.PID(), syscall.SIGTERM)
}

func signalKill(c *Child) {
	killProcessGroup(c.PID(), syscall.SIGKILL)
}
