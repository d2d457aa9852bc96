package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pyrun/internal/config"
	"github.com/ppiankov/pyrun/internal/history"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(os.Stdout, "no runs recorded")
				return nil
			}

			printHistory(os.Stdout, entries)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "history cleared")
			return nil
		},
	})

	return cmd
}

func openHistory() (*history.Store, error) {
	cfg, err := config.LoadSettings(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dbPath := cfg.HistoryDB
	if dbPath == "" {
		dbPath = history.DefaultPath()
	}
	return history.Open(dbPath)
}

func printHistory(w *os.File, entries []*history.Entry) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSCRIPT\tSTATUS\tDURATION\tLAST OUTPUT")
	for _, e := range entries {
		last := e.LastLine
		if len(last) > 60 {
			last = last[:60] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Format("2006-01-02 15:04:05"),
			filepath.Base(e.Script),
			entryStatus(e),
			e.Duration().Truncate(10*time.Millisecond),
			last,
		)
	}
	_ = tw.Flush()
}

func entryStatus(e *history.Entry) string {
	switch {
	case e.TimedOut:
		return "timeout"
	case e.Cancelled:
		return "cancelled"
	case e.Exited:
		return fmt.Sprintf("exit %d", e.ExitCode)
	default:
		return "killed"
	}
}
