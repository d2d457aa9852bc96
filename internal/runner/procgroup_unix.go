//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
	"time"
)

// setupProcessGroup puts the child in its own process group so termination
// reaches grandchildren too (a script that spawns workers must not leave
// orphans behind after a timeout or cancel).
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate requests graceful shutdown of the child's process group with
// SIGTERM, then escalates to SIGKILL if the process has not been reaped
// within grace. exited closes once Wait has returned.
func terminate(cmd *exec.Cmd, grace time.Duration, exited <-chan struct{}) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	select {
	case <-exited:
	case <-time.After(grace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
	}
}
