package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "dutywatch dev") {
		t.Errorf("output = %q", out)
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := newRootCmd()
	want := []string{"version", "serve", "migrate", "sync", "detect"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

func TestMigrateCmd_MissingConfig(t *testing.T) {
	_, err := runCommand(t, "migrate", "--config", "/nonexistent/dutywatch.yaml")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestMigrateCmd_SQLite(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dutywatch.yaml")
	cfg := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "test.db") + "\n" +
		"rules:\n  - name: escalate overlaps\n    conflict_type: overlap\n    strategy: notify_admin\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCommand(t, "migrate", "--config", cfgPath)
	if err != nil {
		t.Fatalf("migrate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Migrated") || !strings.Contains(out, "Seeded 1 scheduling rule") {
		t.Errorf("output = %q", out)
	}
}

func TestSyncCmd_RequiresBaseURL(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "dutywatch.yaml")
	cfg := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "test.db") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := runCommand(t, "sync", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Errorf("err = %v, want base_url error", err)
	}
}

func TestDetectCmd_RequiresFlags(t *testing.T) {
	_, err := runCommand(t, "detect")
	if err == nil {
		t.Error("expected error for missing required flags")
	}
}

func TestDetectCmd_InvalidDates(t *testing.T) {
	_, err := runCommand(t, "detect", "--provider", "prov-a", "--from", "soon", "--to", "2024-06-05")
	if err == nil || !strings.Contains(err.Error(), "--from") {
		t.Errorf("err = %v, want date error", err)
	}
}
