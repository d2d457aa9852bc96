//go:build windows

package runner

import (
	"os/exec"
	"time"
)

// setupProcessGroup is a no-op on Windows where Setpgid is unavailable.
func setupProcessGroup(cmd *exec.Cmd) {}

// terminate kills the child immediately. Windows has no portable graceful
// signal, so the grace period is skipped.
func terminate(cmd *exec.Cmd, grace time.Duration, exited <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
