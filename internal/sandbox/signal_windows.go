//go:build windows

package sandbox

// signalTerminate requests a graceful stop. Windows has no SIGTERM
// equivalent for arbitrary processes; the spec's Windows timeout contract
// routes through the WSL host's TerminateProcess instead, so the graceful
// phase here is a no-op and escalation goes straight to signalKill.
func signalTerminate(c *Child) {}

func signalKill(c *Child) {
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
}
