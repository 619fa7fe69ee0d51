package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the root command with args and returns its combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("af %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

// writeConfig writes a SQLite config into a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "admitflow.yaml")
	content := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "admitflow.db") + "\n" + extra
	if err := writeTestFile(cfgPath, content); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestVersionCmd(t *testing.T) {
	out := mustRun(t, "version")
	if !strings.Contains(out, "af dev") {
		t.Errorf("expected output to contain 'af dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out := mustRun(t, "version")
	for _, want := range []string{"af 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	out := mustRun(t, "--help")
	for _, want := range []string{"Admitflow", "workflow", "lead", "task", "application", "sweep", "serve", "db"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestSubcommandHelp(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"db", "--help"}, []string{"Database management", "init", "reset"}},
		{[]string{"db", "init", "--help"}, []string{"--config", "admitflow.yaml"}},
		{[]string{"workflow", "--help"}, []string{"apply", "enable", "disable", "fire", "runs", "replay"}},
		{[]string{"lead", "--help"}, []string{"create", "show", "stage", "assign"}},
		{[]string{"task", "--help"}, []string{"list", "complete", "reopen"}},
		{[]string{"application", "--help"}, []string{"convert", "status"}},
		{[]string{"serve", "--help"}, []string{"--port", "--no-sweeper"}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out := mustRun(t, tt.args...)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("help missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestMissingConfig(t *testing.T) {
	for _, args := range [][]string{
		{"db", "init"},
		{"workflow", "list"},
		{"lead", "list"},
		{"sweep"},
	} {
		args = append(args, "--config", "/nonexistent/admitflow.yaml")
		_, err := run(t, args...)
		if err == nil || !strings.Contains(err.Error(), "load config") {
			t.Errorf("af %s: err = %v, want load config error", strings.Join(args, " "), err)
		}
	}
}

func TestInvalidIDs(t *testing.T) {
	cfg := writeConfig(t, "")
	for _, args := range [][]string{
		{"workflow", "show", "abc"},
		{"lead", "show", "0"},
		{"task", "complete", "1.5"},
		{"application", "convert", "x"},
	} {
		args = append(args, "-c", cfg)
		if _, err := run(t, args...); err == nil || !strings.Contains(err.Error(), "invalid") {
			t.Errorf("af %s: err = %v", strings.Join(args, " "), err)
		}
	}
}
