// Package runner executes one external linter process: stdio wiring, wall
// clock timeout, cooperative cancellation and a combined output byte cap.
// Expected terminations (timeout, cancellation, cap) resolve into the Result
// record; an error is returned only when the process cannot be spawned.
package runner

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"fortio.org/safecast"

	"sqlbridge/internal/textenc"
)

// DefaultMaxOutput caps combined stdout+stderr capture. A misbehaving tool
// must not grow an unbounded buffer.
const DefaultMaxOutput int64 = 32 << 20

// Options describes one process invocation.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
	// MaxOutput bounds combined stdout+stderr bytes; 0 means
	// DefaultMaxOutput.
	MaxOutput int64
	// Stdin, when UseStdin is set, is written UTF-8 encoded to the
	// process input stream and the stream is closed.
	Stdin    string
	UseStdin bool
}

// Result is the outcome of a run. Exactly one of normal exit (TimedOut and
// Cancelled both false), TimedOut, or Cancelled holds. ExitCode is -1 when
// the process did not exit on its own.
type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Cancelled bool
}

// outcome is the settle state machine: the first terminal transition wins,
// later termination signals are no-ops.
type outcome uint8

const (
	outcomePending outcome = iota
	outcomeExit
	outcomeTimeout
	outcomeCancel
	outcomeCapped
)

type settleGuard struct {
	mu    sync.Mutex
	state outcome
}

// settle performs the one-shot terminal transition. It reports whether this
// caller won.
func (g *settleGuard) settle(to outcome) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != outcomePending {
		return false
	}
	g.state = to
	return true
}

func (g *settleGuard) current() outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Run spawns the command and waits for the first of: normal exit, timeout,
// context cancellation, or output cap. If ctx is already cancelled no
// process is spawned.
func Run(ctx context.Context, opts Options) (Result, error) {
	if ctx.Err() != nil {
		return Result{ExitCode: -1, Cancelled: true}, nil
	}
	maxOutput := opts.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}

	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir

	guard := &settleGuard{}
	budget := newCapBudget(maxOutput)
	stdout := &capWriter{budget: budget}
	stderr := &capWriter{budget: budget}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	var stdin io.WriteCloser
	if opts.UseStdin {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return Result{}, fmt.Errorf("stdin pipe for %s: %w", opts.Command, err)
		}
		stdin = pipe
	}

	kill := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	budget.onExceeded = func() {
		if guard.settle(outcomeCapped) {
			kill()
		}
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", opts.Command, err)
	}

	if stdin != nil {
		go func() {
			_, _ = io.WriteString(stdin, opts.Stdin)
			_ = stdin.Close()
		}()
	}

	var timer *time.Timer
	if opts.Timeout > 0 {
		timer = time.AfterFunc(opts.Timeout, func() {
			if guard.settle(outcomeTimeout) {
				kill()
			}
		})
	}

	waitDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if guard.settle(outcomeCancel) {
				kill()
			}
		case <-waitDone:
		}
	}()

	waitErr := cmd.Wait()
	close(waitDone)
	if timer != nil {
		timer.Stop()
	}
	guard.settle(outcomeExit)

	result := Result{
		Stdout:   textenc.Decode(stdout.bytes()),
		Stderr:   textenc.Decode(stderr.bytes()),
		ExitCode: -1,
	}
	switch guard.current() {
	case outcomeTimeout:
		result.TimedOut = true
	case outcomeCancel:
		result.Cancelled = true
	case outcomeCapped:
		// Cap enforcement finalizes like a timeout, with the reason
		// recorded in the captured error text.
		result.TimedOut = true
		if result.Stderr != "" {
			result.Stderr += "\n"
		}
		result.Stderr += fmt.Sprintf("sqlbridge: output exceeded %d bytes; process terminated", maxOutput)
	default:
		if cmd.ProcessState != nil {
			result.ExitCode = cmd.ProcessState.ExitCode()
		}
		_ = waitErr
	}
	return result, nil
}

// capBudget is the combined byte allowance shared by both stream writers.
type capBudget struct {
	mu         sync.Mutex
	remaining  int64
	exceeded   bool
	onExceeded func()
}

func newCapBudget(limit int64) *capBudget {
	return &capBudget{remaining: limit}
}

// take reserves up to n bytes and reports how many may be kept. Crossing
// zero fires onExceeded exactly once.
func (b *capBudget) take(n int) int {
	want, err := safecast.Conv[int64](n)
	if err != nil {
		want = 0
	}
	b.mu.Lock()
	granted := want
	if granted > b.remaining {
		granted = b.remaining
	}
	b.remaining -= granted
	fire := false
	if granted < want && !b.exceeded {
		b.exceeded = true
		fire = true
	}
	cb := b.onExceeded
	b.mu.Unlock()
	if fire && cb != nil {
		cb()
	}
	keep, err := safecast.Conv[int](granted)
	if err != nil {
		return 0
	}
	return keep
}

// capWriter captures one stream into memory up to the shared budget.
type capWriter struct {
	mu     sync.Mutex
	buf    []byte
	budget *capBudget
}

func (w *capWriter) Write(p []byte) (int, error) {
	keep := w.budget.take(len(p))
	if keep > 0 {
		w.mu.Lock()
		w.buf = append(w.buf, p[:keep]...)
		w.mu.Unlock()
	}
	// Report full consumption so the child sees no pipe error before the
	// kill lands.
	return len(p), nil
}

func (w *capWriter) bytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf
}
