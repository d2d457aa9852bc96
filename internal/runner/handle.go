package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// outputBuffer is the channel capacity for decoded chunks. The reader
// goroutine blocks once the consumer falls this far behind.
const outputBuffer = 64

// Handle is the owned per-run object returned by Start. It carries the
// output stream and the eventual RunResult; there is no ambient global
// run state, so independent Runner instances never interfere.
type Handle struct {
	cfg   RunConfig
	cmd   *exec.Cmd
	grace time.Duration

	output chan string
	done   chan struct{} // closed when the result is settled
	exited chan struct{} // closed when the process has been reaped

	cancelCh   chan struct{}
	cancelOnce sync.Once

	mu     sync.Mutex
	result RunResult
}

// Output returns the lazy stream of decoded output chunks. Chunks arrive in
// the order the child produced its bytes; the channel closes when the
// combined stream reaches EOF.
func (h *Handle) Output() <-chan string { return h.output }

// Done closes when the run has fully completed and the result is settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel requests termination of the run. It is idempotent, and a no-op
// once the run has completed.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() { close(h.cancelCh) })
}

// Wait blocks until the run completes and returns the settled result.
func (h *Handle) Wait() *RunResult {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	res := h.result
	return &res
}

func (h *Handle) finished() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Handle) startedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result.StartedAt
}

// readLoop decodes the combined stdout/stderr pipe as UTF-8, replacing
// invalid byte sequences with U+FFFD, and pushes chunks to the output
// channel until EOF. EOF arrives once every writer of the pipe has died.
func (h *Handle) readLoop(r io.ReadCloser) {
	defer close(h.output)
	defer func() { _ = r.Close() }()

	dec := transform.NewReader(r, unicode.UTF8.NewDecoder())
	buf := make([]byte, 4096)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			h.output <- string(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				slog.Debug("output stream closed", "error", err)
			}
			return
		}
	}
}

// supervise waits for process exit, the timeout, cancellation, or context
// cancellation — whichever comes first — and settles the result.
func (h *Handle) supervise(ctx context.Context) {
	waitCh := make(chan error, 1)
	go func() { waitCh <- h.cmd.Wait() }()

	var timeoutCh <-chan time.Time
	if h.cfg.Timeout > 0 {
		timer := time.NewTimer(h.cfg.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var timedOut, cancelled bool
	var waitErr error

	select {
	case waitErr = <-waitCh:
	case <-timeoutCh:
		timedOut = true
		slog.Debug("timeout elapsed, terminating", "script", h.cfg.Script, "timeout", h.cfg.Timeout)
		go terminate(h.cmd, h.grace, h.exited)
		waitErr = <-waitCh
	case <-h.cancelCh:
		cancelled = true
		slog.Debug("cancel requested, terminating", "script", h.cfg.Script)
		go terminate(h.cmd, h.grace, h.exited)
		waitErr = <-waitCh
	case <-ctx.Done():
		cancelled = true
		go terminate(h.cmd, h.grace, h.exited)
		waitErr = <-waitCh
	}
	close(h.exited)

	h.mu.Lock()
	h.result.EndedAt = time.Now()
	h.result.TimedOut = timedOut
	h.result.Cancelled = cancelled
	switch {
	case waitErr == nil:
		h.result.Exited = true
		h.result.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) && exitErr.ProcessState.Exited() {
			h.result.Exited = true
			h.result.ExitCode = exitErr.ExitCode()
		} else {
			// killed by signal (timeout/cancel) or wait failure
			slog.Debug("process did not exit normally", "script", h.cfg.Script, "error", waitErr)
		}
	}
	h.mu.Unlock()

	close(h.done)
}
