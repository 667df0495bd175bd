package sandbox

import (
	"context"
	"time"
)

// superviseTimeout watches a running Child and, once timeout elapses without
// the process having exited, escalates from a graceful terminate to a hard
// kill after c.killGrace, per the spec's SIGTERM-then-SIGKILL contract.
func superviseTimeout(ctx context.Context, c *Child, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := c.awaitExit()

	select {
	case <-done:
		return
	case <-ctx.Done():
		terminate(c)
	case <-timer.C:
		terminate(c)
	}

	select {
	case <-done:
	case <-time.After(c.killGrace):
		kill(c)
	}
}

func terminate(c *Child) {
	if c.cmd.Process == nil {
		return
	}
	signalTerminate(c)
}

func kill(c *Child) {
	if c.cmd.Process == nil {
		return
	}
	signalKill(c)
}
