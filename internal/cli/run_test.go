package cli

import (
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/pyrun/internal/config"
	"github.com/ppiankov/pyrun/internal/runner"
)

func TestParseEnvPairs(t *testing.T) {
	env, err := parseEnvPairs([]string{"FOO=bar", "EMPTY=", "EQ=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if env["FOO"] != "bar" {
		t.Errorf("FOO: got %q", env["FOO"])
	}
	if v, ok := env["EMPTY"]; !ok || v != "" {
		t.Errorf("EMPTY: got %q (present=%v)", v, ok)
	}
	if env["EQ"] != "a=b" {
		t.Errorf("values may contain '=': got %q", env["EQ"])
	}
}

func TestParseEnvPairs_Malformed(t *testing.T) {
	for _, pair := range []string{"NOVALUE", "=value"} {
		_, err := parseEnvPairs([]string{pair})
		var cfgErr *runner.ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%q: expected ConfigError, got %v", pair, err)
		}
	}
}

func TestParseEnvPairs_Empty(t *testing.T) {
	env, err := parseEnvPairs(nil)
	if err != nil {
		t.Fatal(err)
	}
	if env != nil {
		t.Errorf("expected nil map, got %v", env)
	}
}

func TestBuildRunConfig_FlagsOverrideSettings(t *testing.T) {
	cfg := &config.Settings{
		Interpreter: "/settings/python",
		ExtraPaths:  []string{"/settings/path"},
		Env:         map[string]string{"FROM": "settings", "KEEP": "yes"},
		Timeout:     time.Minute,
		Unbuffered:  true,
	}

	cmd := newRunCmd()
	if err := cmd.Flags().Parse([]string{
		"--interpreter", "/flag/python",
		"--env", "FROM=flag",
		"--timeout", "5s",
	}); err != nil {
		t.Fatal(err)
	}

	var f runFlags
	f.interpreter, _ = cmd.Flags().GetString("interpreter")
	f.envPairs, _ = cmd.Flags().GetStringArray("env")
	f.timeout, _ = cmd.Flags().GetDuration("timeout")

	rc, err := buildRunConfig(cmd, &f, cfg, "job.py")
	if err != nil {
		t.Fatal(err)
	}

	if rc.Interpreter != "/flag/python" {
		t.Errorf("interpreter: got %q", rc.Interpreter)
	}
	if rc.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v", rc.Timeout)
	}
	if len(rc.ExtraPaths) != 1 || rc.ExtraPaths[0] != "/settings/path" {
		t.Errorf("unchanged flag should keep settings paths, got %v", rc.ExtraPaths)
	}
	if rc.Env["FROM"] != "flag" {
		t.Errorf("flag env should win over settings, got %q", rc.Env["FROM"])
	}
	if rc.Env["KEEP"] != "yes" {
		t.Errorf("settings env should survive merge, got %q", rc.Env["KEEP"])
	}
	if len(rc.Args) != 1 || rc.Args[0] != "-u" {
		t.Errorf("unbuffered should add -u, got %v", rc.Args)
	}
	if rc.Script != "job.py" {
		t.Errorf("script: got %q", rc.Script)
	}
}

func TestBuildRunConfig_Buffered(t *testing.T) {
	cfg := &config.Settings{Interpreter: "python3"}
	cmd := newRunCmd()

	rc, err := buildRunConfig(cmd, &runFlags{}, cfg, "job.py")
	if err != nil {
		t.Fatal(err)
	}
	if len(rc.Args) != 0 {
		t.Errorf("buffered config must not add flags, got %v", rc.Args)
	}
}

func TestResolveDisplay(t *testing.T) {
	cases := []struct {
		flag, configured, want string
	}{
		{"minimal", "full", "minimal"},
		{"", "minimal", "minimal"},
		{"off", "", "off"},
		{"full", "", "full"},
	}
	for _, tc := range cases {
		if got := resolveDisplay(tc.flag, tc.configured); got != tc.want {
			t.Errorf("resolveDisplay(%q, %q): got %q, want %q", tc.flag, tc.configured, got, tc.want)
		}
	}

	// auto depends on TTY detection; under go test stdout is not a terminal
	if got := resolveDisplay("", ""); got != "off" {
		t.Errorf("auto without TTY: got %q, want off", got)
	}
}

func TestPrintsSummary(t *testing.T) {
	cases := []struct {
		display string
		want    bool
	}{
		{"minimal", true},
		{"off", false},  // bare stream pipes cleanly
		{"full", false}, // the TUI renders its own status line
	}
	for _, tc := range cases {
		if got := printsSummary(tc.display); got != tc.want {
			t.Errorf("printsSummary(%q): got %v, want %v", tc.display, got, tc.want)
		}
	}
}

func TestResultError(t *testing.T) {
	cases := []struct {
		name string
		res  runner.RunResult
		code int // 0 means expect nil error
	}{
		{"clean exit", runner.RunResult{Exited: true, ExitCode: 0}, 0},
		{"script failure", runner.RunResult{Exited: true, ExitCode: 3}, 3},
		{"timeout", runner.RunResult{TimedOut: true}, 124},
		{"cancelled", runner.RunResult{Cancelled: true}, 130},
		{"killed", runner.RunResult{}, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := resultError(&tc.res)
			if tc.code == 0 {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			var exitErr *ScriptExitError
			if !errors.As(err, &exitErr) {
				t.Fatalf("expected ScriptExitError, got %v", err)
			}
			if exitErr.Code != tc.code {
				t.Errorf("code: got %d, want %d", exitErr.Code, tc.code)
			}
		})
	}
}

func TestLineTracker(t *testing.T) {
	var lt lineTracker
	lt.add("first\nsec")
	if lt.last() != "sec" {
		t.Errorf("partial should count when non-empty: got %q", lt.last())
	}
	lt.add("ond\n\n")
	if lt.last() != "second" {
		t.Errorf("last: got %q, want second", lt.last())
	}
}

func TestLastNonEmpty(t *testing.T) {
	if got := lastNonEmpty([]string{"a", "b", "", "  "}); got != "b" {
		t.Errorf("got %q, want b", got)
	}
	if got := lastNonEmpty(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	res := &runner.RunResult{Exited: true, ExitCode: 2, StartedAt: now.Add(-time.Second), EndedAt: now}
	if got := summarize(res); got != "pyrun: exit 2 in 1s" {
		t.Errorf("summarize: got %q", got)
	}

	res = &runner.RunResult{TimedOut: true, StartedAt: now.Add(-30 * time.Second), EndedAt: now}
	if got := summarize(res); got != "pyrun: timed out after 30s" {
		t.Errorf("summarize timeout: got %q", got)
	}
}
