package runner

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// DefaultGrace is the wait between the graceful termination signal and the
// forced kill when a run is timed out or cancelled.
const DefaultGrace = 5 * time.Second

// Runner launches and supervises one script process at a time. A Start
// while a run is active is rejected with BusyError; the caller cancels or
// waits out the active run first.
type Runner struct {
	grace time.Duration

	mu     sync.Mutex
	active *Handle
}

// New creates a Runner. A zero grace selects DefaultGrace.
func New(grace time.Duration) *Runner {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Runner{grace: grace}
}

// Start validates cfg, spawns the interpreter against the script with
// stdout and stderr merged into one stream, and returns the run handle.
// Validation failures return ConfigError; spawn failures on valid paths
// return ProcessError; an active run returns BusyError.
func (r *Runner) Start(ctx context.Context, cfg RunConfig) (*Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil && !r.active.finished() {
		return nil, &BusyError{Script: r.active.cfg.Script, StartedAt: r.active.startedAt()}
	}

	cmd := exec.Command(cfg.Interpreter, cfg.argv()...)
	cmd.Dir = cfg.Dir
	cmd.Env = cfg.environ(os.Environ())
	setupProcessGroup(cmd)

	// One pipe for both fds: the kernel interleaves writes in the order the
	// child produced them, which is the ordering guarantee we expose.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &ProcessError{Interpreter: cfg.Interpreter, Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	start := time.Now()
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, &ProcessError{Interpreter: cfg.Interpreter, Err: err}
	}
	// the child holds its own copy of the write end
	_ = pw.Close()

	h := &Handle{
		cfg:      cfg,
		cmd:      cmd,
		grace:    r.grace,
		output:   make(chan string, outputBuffer),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		cancelCh: make(chan struct{}),
		result:   RunResult{StartedAt: start},
	}
	r.active = h

	go h.readLoop(pr)
	go h.supervise(ctx)

	slog.Debug("spawned script",
		"interpreter", cfg.Interpreter,
		"script", cfg.Script,
		"pid", cmd.Process.Pid,
		"timeout", cfg.Timeout,
	)

	return h, nil
}
