package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pyrun/internal/config"
	"github.com/ppiankov/pyrun/internal/runner"
	"github.com/ppiankov/pyrun/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "watch <script>",
		Short: "Run a script and rerun it whenever it changes",
		Long:  "Watch runs the script like run does, then watches the script and every extra path for changes. A change cancels any in-flight run and starts a fresh one.",
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

			return watchLoop(rc, cfg, f.noHistory)
		},
	}

	f.register(cmd)
	// the rerun loop streams to stdout; a full-screen TUI cannot restart cleanly
	_ = cmd.Flags().MarkHidden("display")

	return cmd
}

// watchLoop runs the script, then reruns it on every change until interrupted.
func watchLoop(rc runner.RunConfig, cfg *config.Settings, noHistory bool) error {
	// validate up front so a bad path fails before the first watch cycle
	if err := rc.Validate(); err != nil {
		return err
	}

	targets := append([]string{rc.Script}, rc.ExtraPaths...)
	w, err := watch.New(targets...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rerun := make(chan struct{}, 1)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Run(ctx, func() {
			select {
			case rerun <- struct{}{}:
			default:
			}
		})
	}()

	r := runner.New(cfg.GracePeriod)
	for {
		h, err := r.Start(ctx, rc)
		if err != nil {
			return err
		}

		lastLine, interrupted := streamOutput(h, rerun)
		res := h.Wait()
		fmt.Fprintf(os.Stdout, "\n%s\n", summarize(res))

		if !noHistory {
			recordHistory(cfg, rc, res, lastLine)
		}

		if interrupted {
			fmt.Fprintln(os.Stdout, "pyrun: change detected, rerunning...")
			continue
		}

		select {
		case <-ctx.Done():
			return <-watchErr
		case err := <-watchErr:
			return err
		case <-rerun:
			fmt.Fprintln(os.Stdout, "pyrun: change detected, rerunning...")
		}
	}
}
