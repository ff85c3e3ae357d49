package video

import (
	"context"
	"os/exec"
	"syscall"
	"time"
)

// killGracePeriod is how long a cancelled encoder gets to exit after
// SIGTERM before it is hard-killed.
const killGracePeriod = 5 * time.Second

// runWithContext starts cmd and blocks until it exits. If ctx is
// cancelled first, the process receives SIGTERM and, failing that, a
// SIGKILL after the grace period.
func runWithContext(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(killGracePeriod):
			_ = cmd.Process.Kill()
			<-done
		}
		return ctx.Err()
	}
}
