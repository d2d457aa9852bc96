package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ppiankov/pyrun/internal/config"
	"github.com/ppiankov/pyrun/internal/history"
	"github.com/ppiankov/pyrun/internal/runner"
	"github.com/ppiankov/pyrun/internal/tui"
)

// runFlags holds the flag values shared by run and watch.
type runFlags struct {
	interpreter string
	workdir     string
	paths       []string
	envPairs    []string
	timeout     time.Duration
	display     string
	noHistory   bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.interpreter, "interpreter", "i", "", "path to the Python interpreter (defaults to config)")
	cmd.Flags().StringVar(&f.workdir, "workdir", "", "working directory for the script")
	cmd.Flags().StringArrayVarP(&f.paths, "path", "p", nil, "directory prepended to PYTHONPATH (repeatable)")
	cmd.Flags().StringArrayVarP(&f.envPairs, "env", "e", nil, "environment variable KEY=VALUE (repeatable)")
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "t", 0, "kill the script after this duration (0 = no limit)")
	cmd.Flags().StringVar(&f.display, "display", "", "output mode: full (interactive), minimal (stream + summary), off (bare stream), auto (detect TTY)")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record this run in history")
}

func newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Run a script and stream its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			rc, err := buildRunConfig(cmd, &f, cfg, args[0])
			if err != nil {
				return err
			}

			return executeRun(rc, cfg, resolveDisplay(f.display, cfg.Display), f.noHistory)
		},
	}

	f.register(cmd)

	return cmd
}

// buildRunConfig merges flags over settings into a validated-later RunConfig.
// Flags that were explicitly set win; unset flags fall back to the config file.
func buildRunConfig(cmd *cobra.Command, f *runFlags, cfg *config.Settings, script string) (runner.RunConfig, error) {
	interpreter := cfg.Interpreter
	if cmd.Flags().Changed("interpreter") {
		interpreter = f.interpreter
	}

	paths := cfg.ExtraPaths
	if cmd.Flags().Changed("path") {
		paths = f.paths
	}

	timeout := cfg.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout = f.timeout
	}

	workdir := cfg.Workdir
	if cmd.Flags().Changed("workdir") {
		workdir = f.workdir
	}

	env := make(map[string]string, len(cfg.Env)+len(f.envPairs))
	for k, v := range cfg.Env {
		env[k] = v
	}
	flagEnv, err := parseEnvPairs(f.envPairs)
	if err != nil {
		return runner.RunConfig{}, err
	}
	for k, v := range flagEnv {
		env[k] = v
	}

	var args []string
	if cfg.Unbuffered {
		// -u forces unbuffered streams so output arrives as it is produced
		args = append(args, "-u")
	}

	return runner.RunConfig{
		Interpreter: interpreter,
		Script:      script,
		Args:        args,
		ExtraPaths:  paths,
		Env:         env,
		Dir:         workdir,
		Timeout:     timeout,
	}, nil
}

// parseEnvPairs converts KEY=VALUE flag values into a map.
func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, &runner.ConfigError{Field: "env", Value: pair, Err: fmt.Errorf("expected KEY=VALUE")}
		}
		env[strings.TrimSpace(k)] = v
	}
	return env, nil
}

// resolveDisplay picks the effective display mode: flag, then config, then
// TTY detection for "auto".
func resolveDisplay(flag, configured string) string {
	mode := flag
	if mode == "" {
		mode = configured
	}
	if mode == "" || mode == "auto" {
		if isTerminal() {
			return "full"
		}
		return "off"
	}
	return mode
}

// ScriptExitError carries the child's exit status to main for verbatim
// forwarding. Timed-out runs use 124 and cancelled runs 130, following the
// timeout(1) and SIGINT shell conventions.
type ScriptExitError struct {
	Code   int
	Reason string
}

func (e *ScriptExitError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("script exited with code %d", e.Code)
}

// executeRun starts the run, drives the chosen display until completion,
// records history, and maps the final status to the process exit code.
func executeRun(rc runner.RunConfig, cfg *config.Settings, display string, noHistory bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := runner.New(cfg.GracePeriod)
	h, err := r.Start(ctx, rc)
	if err != nil {
		return err
	}

	var lastLine string
	switch display {
	case "full":
		model := tui.New(h, rc.Script, rc.Interpreter)
		p := tea.NewProgram(model, tea.WithAltScreen())
		final, err := p.Run()
		if err != nil {
			slog.Warn("display error", "error", err)
			h.Cancel()
		}
		if m, ok := final.(tui.Model); ok {
			lastLine = lastNonEmpty(m.Lines())
		}
	default:
		// minimal and off both stream chunks straight through; off stays
		// silent beyond the script's own output so it pipes cleanly
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		go func() {
			<-sigCh
			if printsSummary(display) {
				fmt.Fprintln(os.Stderr, "\ninterrupted, stopping script...")
			}
			h.Cancel()
		}()

		lastLine, _ = streamOutput(h, nil)
	}

	res := h.Wait()

	if printsSummary(display) {
		fmt.Fprintf(os.Stdout, "\n%s\n", summarize(res))
	}

	if !noHistory {
		recordHistory(cfg, rc, res, lastLine)
	}

	return resultError(res)
}

// streamOutput copies chunks to stdout until the stream closes or interrupt
// fires (in which case the run is cancelled and the remainder drained).
func streamOutput(h *runner.Handle, interrupt <-chan struct{}) (lastLine string, interrupted bool) {
	var lt lineTracker
	for {
		select {
		case chunk, ok := <-h.Output():
			if !ok {
				return lt.last(), false
			}
			fmt.Fprint(os.Stdout, chunk)
			lt.add(chunk)
		case <-interrupt:
			h.Cancel()
			for chunk := range h.Output() {
				fmt.Fprint(os.Stdout, chunk)
				lt.add(chunk)
			}
			return lt.last(), true
		}
	}
}

// lineTracker keeps the last non-empty output line across chunk boundaries.
type lineTracker struct {
	partial  string
	lastFull string
}

func (lt *lineTracker) add(chunk string) {
	text := lt.partial + chunk
	parts := strings.Split(text, "\n")
	lt.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		if strings.TrimSpace(line) != "" {
			lt.lastFull = line
		}
	}
}

func (lt *lineTracker) last() string {
	if strings.TrimSpace(lt.partial) != "" {
		return lt.partial
	}
	return lt.lastFull
}

func lastNonEmpty(lines []string) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// printsSummary reports whether the mode appends the final status line and
// interrupt notices after the stream. full renders its own status line and
// off is a bare stream.
func printsSummary(display string) bool { return display == "minimal" }

// summarize renders the final status line shown after streaming output.
func summarize(res *runner.RunResult) string {
	dur := res.Duration().Truncate(10 * time.Millisecond)
	switch {
	case res.TimedOut:
		return fmt.Sprintf("pyrun: timed out after %s", dur)
	case res.Cancelled:
		return fmt.Sprintf("pyrun: cancelled after %s", dur)
	case res.Exited:
		return fmt.Sprintf("pyrun: exit %d in %s", res.ExitCode, dur)
	default:
		return fmt.Sprintf("pyrun: killed in %s", dur)
	}
}

// resultError maps the run result to the CLI exit status. A clean exit 0
// returns nil; everything else becomes a ScriptExitError.
func resultError(res *runner.RunResult) error {
	switch {
	case res.TimedOut:
		return &ScriptExitError{Code: 124, Reason: "script timed out"}
	case res.Cancelled:
		return &ScriptExitError{Code: 130, Reason: "script cancelled"}
	case res.Exited && res.ExitCode == 0:
		return nil
	case res.Exited:
		return &ScriptExitError{Code: res.ExitCode}
	default:
		return &ScriptExitError{Code: 1, Reason: "script killed"}
	}
}

// recordHistory persists the run outcome. Failures are logged, never fatal.
func recordHistory(cfg *config.Settings, rc runner.RunConfig, res *runner.RunResult, lastLine string) {
	dbPath := cfg.HistoryDB
	if dbPath == "" {
		dbPath = history.DefaultPath()
	}

	store, err := history.Open(dbPath)
	if err != nil {
		slog.Warn("history unavailable", "error", err)
		return
	}
	defer func() { _ = store.Close() }()

	entry := &history.Entry{
		Script:      rc.Script,
		Interpreter: rc.Interpreter,
		StartedAt:   res.StartedAt,
		EndedAt:     res.EndedAt,
		ExitCode:    res.ExitCode,
		Exited:      res.Exited,
		TimedOut:    res.TimedOut,
		Cancelled:   res.Cancelled,
		LastLine:    lastLine,
	}
	if err := store.Record(entry); err != nil {
		slog.Warn("failed to record run", "error", err)
	}
}
