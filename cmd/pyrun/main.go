package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/pyrun/internal/cli"
	"github.com/ppiankov/pyrun/internal/runner"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exitErr *cli.ScriptExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		var cfgErr *runner.ConfigError
		var busyErr *runner.BusyError
		if errors.As(err, &cfgErr) || errors.As(err, &busyErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
