// Package checkrun lints a fixed file set in parallel, for the one-shot
// command-line path as opposed to the editor-driven one.
package checkrun

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sqlbridge/internal/diag"
	"sqlbridge/internal/diagfmt"
	"sqlbridge/internal/lint"
	"sqlbridge/internal/lintcfg"
	"sqlbridge/internal/textenc"
)

// Status tracks one file through the run.
type Status uint8

const (
	StatusQueued Status = iota
	StatusRunning
	StatusDone
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Event reports a per-file status transition.
type Event struct {
	File   string
	Status Status
	// Count holds the number of findings once Status is StatusDone.
	Count int
}

// FileReport is the result for one file.
type FileReport struct {
	Path string
	// Lines holds the decoded content, for context rendering.
	Lines   []string
	Outcome lint.Outcome
	// Err is set when the file could not be read.
	Err error
}

// Options configures a batch run.
type Options struct {
	Settings lintcfg.Settings
	// Service overrides the lint service, for tests.
	Service *lint.Service
	Cache   *lint.Cache
	// Events, when non-nil, receives per-file transitions and is closed
	// when the run finishes.
	Events chan<- Event
	Log    zerolog.Logger
}

// Run lints files with at most Settings.MaxConcurrent linter processes at
// once. Reports come back in input order. The returned error is only a
// context cancellation; per-file failures live in the reports.
func Run(ctx context.Context, files []string, opts Options) ([]FileReport, error) {
	service := opts.Service
	if service == nil {
		service = lint.NewService(lint.Options{
			Settings: opts.Settings.Static(),
			Cache:    opts.Cache,
			Log:      opts.Log,
		})
	}
	emit := func(ev Event) {
		if opts.Events != nil {
			opts.Events <- ev
		}
	}
	defer func() {
		if opts.Events != nil {
			close(opts.Events)
		}
	}()

	for _, file := range files {
		emit(Event{File: file, Status: StatusQueued})
	}

	reports := make([]FileReport, len(files))
	g, gctx := errgroup.WithContext(ctx)
	workers := opts.Settings.MaxConcurrent
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emit(Event{File: file, Status: StatusRunning})
			report := checkFile(gctx, service, file)
			reports[i] = report
			if report.Err != nil || report.Outcome.Status != lint.StatusOK {
				emit(Event{File: file, Status: StatusError})
			} else {
				emit(Event{File: file, Status: StatusDone, Count: len(report.Outcome.Diagnostics)})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, nil
}

func checkFile(ctx context.Context, service *lint.Service, file string) FileReport {
	report := FileReport{Path: file}
	raw, err := os.ReadFile(file)
	if err != nil {
		report.Err = err
		return report
	}
	text := textenc.Decode(raw)
	report.Lines = strings.Split(text, "\n")

	abs := file
	if a, err := filepath.Abs(file); err == nil {
		abs = a
	}
	report.Outcome = service.Run(ctx, lint.Document{
		URI:   "file://" + filepath.ToSlash(abs),
		Path:  abs,
		Text:  text,
		Saved: true,
		Dir:   filepath.Dir(abs),
	})
	return report
}


// Results converts reports into the formatter's shape, skipping files that
// failed outright.
func Results(reports []FileReport) []diagfmt.FileResult {
	results := make([]diagfmt.FileResult, 0, len(reports))
	for _, r := range reports {
		if r.Err != nil || r.Outcome.Status != lint.StatusOK {
			continue
		}
		results = append(results, diagfmt.FileResult{
			Path:  r.Path,
			Lines: r.Lines,
			Diags: r.Outcome.Diagnostics,
		})
	}
	return results
}

// ExitCode derives the process exit status: 0 clean, 1 findings at error
// severity, 2 when any file could not be read or linted.
func ExitCode(reports []FileReport) int {
	code := 0
	for _, r := range reports {
		if r.Err != nil || r.Outcome.Status != lint.StatusOK {
			return 2
		}
		for _, d := range r.Outcome.Diagnostics {
			if d.Severity == diag.SevError {
				code = 1
			}
		}
	}
	return code
}
