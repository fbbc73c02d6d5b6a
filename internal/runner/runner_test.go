package runner

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests shell out to sh")
	}
}

func TestRunAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, Options{Command: "definitely-not-a-command"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("expected cancelled result, got %+v", res)
	}
	if res.Stdout != "" || res.Stderr != "" {
		t.Fatalf("expected empty output, got %+v", res)
	}
}

func TestRunNormalExit(t *testing.T) {
	requireSh(t)
	res, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "echo out; echo err >&2; exit 1"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TimedOut || res.Cancelled {
		t.Fatalf("expected normal exit, got %+v", res)
	}
	if res.ExitCode != 1 {
		t.Fatalf("exit code = %d, want 1", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestRunStdin(t *testing.T) {
	requireSh(t)
	res, err := Run(context.Background(), Options{
		Command:  "sh",
		Args:     []string{"-c", "cat"},
		Stdin:    "select 1;\n",
		UseStdin: true,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Stdout != "select 1;\n" {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d", res.ExitCode)
	}
}

func TestRunTimeout(t *testing.T) {
	requireSh(t)
	start := time.Now()
	res, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if res.Cancelled {
		t.Fatalf("timeout must not also report cancellation: %+v", res)
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code = %d, want -1", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("timeout did not terminate the process promptly (%v)", elapsed)
	}
}

func TestRunCancel(t *testing.T) {
	requireSh(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := Run(ctx, Options{
		Command: "sh",
		Args:    []string{"-c", "sleep 30"},
		Timeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Cancelled {
		t.Fatalf("expected cancelled result, got %+v", res)
	}
	if res.TimedOut {
		t.Fatalf("cancellation must not also report timeout: %+v", res)
	}
}

func TestRunOutputCap(t *testing.T) {
	requireSh(t)
	res, err := Run(context.Background(), Options{
		Command:   "sh",
		Args:      []string{"-c", "while :; do echo aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa; done"},
		Timeout:   30 * time.Second,
		MaxOutput: 64 << 10,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("cap must finalize with timeout semantics, got %+v", res)
	}
	if !strings.Contains(res.Stderr, "output exceeded") {
		t.Fatalf("expected cap marker in stderr, got %q", res.Stderr)
	}
	if int64(len(res.Stdout))+int64(len(res.Stderr)) > (64<<10)+256 {
		t.Fatalf("capture exceeded cap: %d bytes", len(res.Stdout)+len(res.Stderr))
	}
}

func TestRunSpawnFailure(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Command: "/nonexistent/sqlbridge-test-binary",
		Timeout: time.Second,
	})
	if err == nil {
		t.Fatalf("expected spawn error")
	}
}
