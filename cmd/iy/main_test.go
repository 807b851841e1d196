package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCmd executes a fresh root command with args and returns its combined output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeConfig writes a sqlite-backed config into a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "inspectyard.yaml")
	body := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "iy.db") + "\n" +
		"agents:\n  - name: vin_decode\n    type: decoder\n  - name: cost_forecast\n    type: llm\n    max_retries: 2\n" + extra
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "iy dev") {
		t.Errorf("expected output to contain 'iy dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "iy 1.0.0 (commit: abc123, built: 2026-01-01)") {
		t.Errorf("unexpected version output: %s", out)
	}
}

func TestRootCmd_Help(t *testing.T) {
	out, err := runCmd(t, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, sub := range []string{"db", "watchdog", "job", "agent", "serve", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing %q", sub)
		}
	}
}

func TestRootCmd_SubcommandsRegistered(t *testing.T) {
	root := newRootCmd()
	want := map[string][]string{
		"db":       {"init", "reset"},
		"watchdog": {"scan", "run", "history"},
		"job":      {"create", "start", "show", "list"},
		"agent":    {"dispatch", "begin", "finish"},
	}
	for parent, subs := range want {
		cmd, _, err := root.Find([]string{parent})
		if err != nil || cmd.Name() != parent {
			t.Fatalf("%s not registered: %v", parent, err)
		}
		for _, sub := range subs {
			if c, _, err := root.Find([]string{parent, sub}); err != nil || c.Name() != sub {
				t.Errorf("%s %s not registered", parent, sub)
			}
		}
	}
}

func TestConfigFlagDefaults(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"db", "init"}, {"db", "reset"}, {"watchdog", "scan"}, {"watchdog", "run"},
		{"watchdog", "history"}, {"job", "list"}, {"agent", "begin"}, {"serve"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil {
			t.Fatalf("find %v: %v", path, err)
		}
		f := cmd.Flags().Lookup("config")
		if f == nil {
			t.Errorf("%v: no --config flag", path)
			continue
		}
		if f.DefValue != defaultConfigPath || f.Shorthand != "c" {
			t.Errorf("%v: config flag = %q/-%s", path, f.DefValue, f.Shorthand)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestParseExecID(t *testing.T) {
	if id, err := parseExecID("42"); err != nil || id != 42 {
		t.Errorf("parseExecID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "abc"} {
		if _, err := parseExecID(bad); err == nil {
			t.Errorf("parseExecID(%q) should fail", bad)
		}
	}
}
