package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// pythonPathVar is the module search path variable prepended with ExtraPaths.
const pythonPathVar = "PYTHONPATH"

// RunConfig describes a single script invocation. It is read-only once the
// run has started.
type RunConfig struct {
	Interpreter string            // path to the interpreter executable
	Script      string            // path to the script to run
	Args        []string          // extra interpreter flags, placed before the script (e.g. -u)
	ExtraPaths  []string          // prepended to PYTHONPATH in listed order
	Env         map[string]string // merged over the parent environment; these win
	Dir         string            // child working directory; empty = inherit
	Timeout     time.Duration     // wall-clock limit; <= 0 means no timeout
}

// Validate checks that the interpreter and script reference existing files
// and that env entries are well-formed. It never touches the process table.
func (c *RunConfig) Validate() error {
	if err := checkInterpreter(c.Interpreter); err != nil {
		return err
	}
	if err := statFile("script", c.Script); err != nil {
		return err
	}
	for k := range c.Env {
		if k == "" || strings.Contains(k, "=") {
			return &ConfigError{Field: "env", Value: k, Err: fmt.Errorf("variable name must be non-empty and contain no '='")}
		}
	}
	return nil
}

// checkInterpreter accepts either a filesystem path or a bare command name.
// Bare names ("python3") resolve through PATH, matching what exec.Command
// does at spawn time.
func checkInterpreter(path string) error {
	if path == "" {
		return &ConfigError{Field: "interpreter", Value: path, Err: fmt.Errorf("path is empty")}
	}
	if filepath.Base(path) == path {
		if _, err := exec.LookPath(path); err != nil {
			return &ConfigError{Field: "interpreter", Value: path, Err: err}
		}
		return nil
	}
	return statFile("interpreter", path)
}

func statFile(field, path string) error {
	if path == "" {
		return &ConfigError{Field: field, Value: path, Err: fmt.Errorf("path is empty")}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &ConfigError{Field: field, Value: path, Err: err}
	}
	if info.IsDir() {
		return &ConfigError{Field: field, Value: path, Err: fmt.Errorf("path is a directory")}
	}
	return nil
}

// environ builds the child environment: base (normally os.Environ()) merged
// with c.Env (config wins), ExtraPaths prepended to PYTHONPATH, and
// PYTHONIOENCODING defaulted to utf-8 so the child emits what we decode.
func (c *RunConfig) environ(base []string) []string {
	var keys []string
	values := make(map[string]string, len(base)+len(c.Env)+2)

	set := func(k, v string) {
		if _, seen := values[k]; !seen {
			keys = append(keys, k)
		}
		values[k] = v
	}

	for _, entry := range base {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		set(k, v)
	}

	// force utf-8 output on the child; explicit config still wins below
	set("PYTHONIOENCODING", "utf-8")

	for _, k := range sortedKeys(c.Env) {
		set(k, c.Env[k])
	}

	if len(c.ExtraPaths) > 0 {
		joined := strings.Join(c.ExtraPaths, string(os.PathListSeparator))
		if existing := values[pythonPathVar]; existing != "" {
			joined += string(os.PathListSeparator) + existing
		}
		set(pythonPathVar, joined)
	}

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+values[k])
	}
	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// argv returns the full child argument list: interpreter flags then script.
func (c *RunConfig) argv() []string {
	args := make([]string, 0, len(c.Args)+1)
	args = append(args, c.Args...)
	return append(args, c.Script)
}
