package lintcfg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sqlbridge/internal/diag"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TOMLName)
	writeFile(t, path, `
[linter]
command = "sqlfluff-shim"
args = ["--no-color"]
config = ".tsqllintrc"
timeout_ms = 5000
max_output_bytes = 1048576

[jobs]
max_concurrent = 2
debounce_ms = 250

[diagnostics]
min_severity = "warning"

[log]
level = "debug"
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Command != "sqlfluff-shim" {
		t.Errorf("command = %q", s.Command)
	}
	if len(s.Args) != 1 || s.Args[0] != "--no-color" {
		t.Errorf("args = %v", s.Args)
	}
	if s.ConfigPath != filepath.Join(dir, ".tsqllintrc") {
		t.Errorf("config path not resolved against settings dir: %q", s.ConfigPath)
	}
	if s.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", s.Timeout)
	}
	if s.MaxOutputBytes != 1<<20 {
		t.Errorf("max output = %d", s.MaxOutputBytes)
	}
	if s.MaxConcurrent != 2 {
		t.Errorf("max concurrent = %d", s.MaxConcurrent)
	}
	if s.Debounce != 250*time.Millisecond {
		t.Errorf("debounce = %v", s.Debounce)
	}
	if s.MinSeverity != diag.SevWarning {
		t.Errorf("min severity = %v", s.MinSeverity)
	}
	if s.LogLevel != "debug" {
		t.Errorf("log level = %q", s.LogLevel)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, YAMLName)
	writeFile(t, path, `
linter:
  command: sql-lint
  timeout_ms: 2000
jobs:
  max_concurrent: 8
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Command != "sql-lint" {
		t.Errorf("command = %q", s.Command)
	}
	if s.Timeout != 2*time.Second {
		t.Errorf("timeout = %v", s.Timeout)
	}
	if s.MaxConcurrent != 8 {
		t.Errorf("max concurrent = %d", s.MaxConcurrent)
	}
	// Unset fields keep defaults.
	if s.Debounce != DefaultDebounce {
		t.Errorf("debounce = %v", s.Debounce)
	}
}

func TestClampCapacityMinimumOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TOMLName)
	writeFile(t, path, `
[jobs]
max_concurrent = -3
debounce_ms = -100
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.MaxConcurrent != 1 {
		t.Errorf("max concurrent = %d, want clamp to 1", s.MaxConcurrent)
	}
	if s.Debounce != 0 {
		t.Errorf("debounce = %v, want clamp to 0", s.Debounce)
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := filepath.Join(root, TOMLName)
	writeFile(t, want, "[linter]\n")

	got, err := Discover(nested)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if got != want {
		t.Errorf("discover = %q, want %q", got, want)
	}
}

func TestDiscoverNotFound(t *testing.T) {
	dir := t.TempDir()
	if _, err := Discover(dir); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s, err := Resolve(dir)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from resolve, got %v", err)
	}
	if s.Command != DefaultCommand {
		t.Errorf("defaults not returned: %+v", s)
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TOMLName)
	writeFile(t, path, "[linter\ncommand=")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDiscoverLinterConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "queries", "reports")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	want := filepath.Join(root, LinterRCName)
	writeFile(t, want, "{}")

	if got := DiscoverLinterConfig(nested); got != want {
		t.Errorf("linter config = %q, want %q", got, want)
	}
	if got := DiscoverLinterConfig(t.TempDir()); got != "" {
		t.Errorf("expected no linter config, got %q", got)
	}
}
