// Package lint runs the external SQL linter against one document and turns
// its output into diagnostics. It owns the pieces around the raw process
// run: tool availability preflight, stdin-vs-file invocation strategy, exit
// code interpretation, severity filtering and the result cache. Scheduling
// lives in internal/schedule; this package is what the scheduler's run
// function calls.
package lint

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sqlbridge/internal/diag"
	"sqlbridge/internal/extract"
	"sqlbridge/internal/lintcfg"
	"sqlbridge/internal/runner"
)

// Source labels every diagnostic this service emits.
const Source = "sqlbridge"

// Stdin markers the linter may echo back as the analyzed path.
var stdinMarkers = []string{"-", "stdin"}

// Status classifies the outcome of one lint attempt.
type Status uint8

const (
	// StatusOK means the linter ran; Diagnostics holds its findings.
	StatusOK Status = iota
	// StatusCancelled means the run was superseded; silent, no
	// diagnostics change.
	StatusCancelled
	// StatusTimedOut means the run hit the wall-clock timeout.
	StatusTimedOut
	// StatusToolMissing means the configured linter could not be found.
	StatusToolMissing
	// StatusToolFailed means the linter exited with an error-class code
	// or could not be spawned.
	StatusToolFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusCancelled:
		return "cancelled"
	case StatusTimedOut:
		return "timed out"
	case StatusToolMissing:
		return "tool missing"
	case StatusToolFailed:
		return "tool failed"
	}
	return "unknown"
}

// Outcome is the result of one lint attempt.
type Outcome struct {
	Status      Status
	Diagnostics []diag.Diagnostic
	// Detail carries a one-line description for warning notices.
	Detail string
}

// Count is the scheduler's result-count signal: -1 for failure or
// cancellation, 0 for nothing found, >0 for findings.
func (o Outcome) Count() int {
	if o.Status != StatusOK {
		return -1
	}
	return len(o.Diagnostics)
}

// Document is one lint target.
type Document struct {
	URI     string
	Path    string
	Text    string
	Version int
	// Saved reports whether the on-disk content matches Text; saved
	// documents are linted by path, dirty ones through stdin.
	Saved bool
	// Dir is the working directory for the linter process.
	Dir string
}

// NoticeLevel grades user-facing notices.
type NoticeLevel uint8

const (
	NoticeWarning NoticeLevel = iota
	NoticeError
)

// NotifyFunc surfaces a user-facing notice (an editor popup, a CLI line).
type NotifyFunc func(level NoticeLevel, message string)

// RunProcess abstracts the process runner for tests.
type RunProcess func(ctx context.Context, opts runner.Options) (runner.Result, error)

// Options configures a Service.
type Options struct {
	// Settings yields the current effective settings; called per run so
	// config reloads apply without rebuilding the service.
	Settings func() lintcfg.Settings
	// Run defaults to runner.Run.
	Run    RunProcess
	Notify NotifyFunc
	Cache  *Cache
	Log    zerolog.Logger
}

// Service lints documents with the external tool.
type Service struct {
	settings func() lintcfg.Settings
	runProc  RunProcess
	notify   NotifyFunc
	cache    *Cache
	log      zerolog.Logger

	probeMu      sync.Mutex
	probeCmd     string
	probeErr     error
	probeExpires time.Time

	// missingNotice rate-limits the tool-missing popup; a broken PATH
	// should not spam on every keystroke.
	missingNotice *rate.Limiter
}

// NewService constructs a Service.
func NewService(opts Options) *Service {
	runProc := opts.Run
	if runProc == nil {
		runProc = runner.Run
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(NoticeLevel, string) {}
	}
	settings := opts.Settings
	if settings == nil {
		settings = lintcfg.Default().Static()
	}
	return &Service{
		settings:      settings,
		runProc:       runProc,
		notify:        notify,
		cache:         opts.Cache,
		log:           opts.Log,
		missingNotice: rate.NewLimiter(rate.Every(30*time.Second), 1),
	}
}

// Run lints one document. Expected failures come back as an Outcome, never
// an error.
func (s *Service) Run(ctx context.Context, doc Document) Outcome {
	st := s.settings()

	if err := s.toolAvailable(st.Command); err != nil {
		if s.missingNotice.Allow() {
			s.notify(NoticeError, err.Error()+"; check the linter.command setting")
		}
		s.log.Warn().Str("command", st.Command).Err(err).Msg("linter unavailable")
		return Outcome{Status: StatusToolMissing, Detail: err.Error()}
	}

	opts, targets := s.invocation(st, doc)
	key := cacheKey(opts, st.MinSeverity, doc.Text)
	if s.cache != nil {
		if diags, ok := s.cache.Get(key); ok {
			s.log.Debug().Str("uri", doc.URI).Int("count", len(diags)).Msg("cache hit")
			return Outcome{Status: StatusOK, Diagnostics: diags}
		}
	}

	started := time.Now()
	res, err := s.runProc(ctx, opts)
	if err != nil {
		s.notify(NoticeWarning, "failed to start linter: "+err.Error())
		s.log.Error().Err(err).Str("command", st.Command).Msg("spawn failed")
		return Outcome{Status: StatusToolFailed, Detail: err.Error()}
	}

	switch {
	case res.Cancelled:
		s.log.Debug().Str("uri", doc.URI).Msg("run superseded")
		return Outcome{Status: StatusCancelled}
	case res.TimedOut:
		detail := "linter timed out after " + st.Timeout.String()
		s.notify(NoticeWarning, detail)
		s.log.Warn().Str("uri", doc.URI).Dur("timeout", st.Timeout).Msg("run timed out")
		return Outcome{Status: StatusTimedOut, Detail: detail}
	case res.ExitCode >= 2:
		detail := describeExit(res.ExitCode, res.Stderr)
		s.notify(NoticeWarning, detail)
		s.log.Warn().Str("uri", doc.URI).Int("exit", res.ExitCode).Msg("linter failed")
		return Outcome{Status: StatusToolFailed, Detail: detail}
	}

	diags, shape := extract.Parse(extract.Params{
		Text:        res.Stdout,
		Dir:         opts.Dir,
		TargetPaths: targets,
		SourceLines: strings.Split(doc.Text, "\n"),
		Source:      Source,
	})
	diags = diag.FilterMin(diags, st.MinSeverity)
	diag.Sort(diags)
	s.log.Debug().
		Str("uri", doc.URI).
		Stringer("shape", shape).
		Int("count", len(diags)).
		Dur("elapsed", time.Since(started)).
		Msg("lint complete")

	if s.cache != nil {
		s.cache.Put(key, diags)
	}
	return Outcome{Status: StatusOK, Diagnostics: diags}
}

// invocation assembles the process options and the acceptable reported
// paths. Saved documents go by file path; dirty ones stream through stdin
// so the linter sees unsaved edits.
func (s *Service) invocation(st lintcfg.Settings, doc Document) (runner.Options, []string) {
	args := append([]string(nil), st.Args...)
	configPath := st.ConfigPath
	if configPath == "" && doc.Dir != "" {
		configPath = lintcfg.DiscoverLinterConfig(doc.Dir)
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	opts := runner.Options{
		Command:   st.Command,
		Dir:       doc.Dir,
		Timeout:   st.Timeout,
		MaxOutput: st.MaxOutputBytes,
	}
	targets := []string{doc.Path}
	if doc.Saved && doc.Path != "" {
		opts.Args = append(args, doc.Path)
		return opts, targets
	}
	opts.Args = append(args, "-")
	opts.Stdin = doc.Text
	opts.UseStdin = true
	targets = append(targets, stdinMarkers...)
	return opts, targets
}
