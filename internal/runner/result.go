package runner

import "time"

// RunResult is the final status of a run. It is settled exactly once, when
// the child process has been reaped.
type RunResult struct {
	ExitCode  int       // valid only when Exited
	Exited    bool      // false when the process was killed by a signal
	TimedOut  bool      // the timeout fired and the process was terminated
	Cancelled bool      // Cancel (or context cancellation) terminated the run
	StartedAt time.Time
	EndedAt   time.Time
}

// Duration returns the wall-clock runtime of the child process.
func (r *RunResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
