package runner

import (
	"fmt"
	"time"
)

// ConfigError reports an invalid RunConfig detected before any process is
// spawned. The user fixes the input and retries.
type ConfigError struct {
	Field string // "interpreter", "script", "env"
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// BusyError is returned by Start while another run is still active.
// The active run is left untouched.
type BusyError struct {
	Script    string
	StartedAt time.Time
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("a run of %s is active since %s", e.Script, e.StartedAt.Format(time.Kitchen))
}

// ProcessError reports an OS-level spawn failure for a config that passed
// validation (e.g. the interpreter exists but is not executable).
type ProcessError struct {
	Interpreter string
	Err         error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Interpreter, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }
