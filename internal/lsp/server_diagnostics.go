package lsp

import (
	"context"
	"path/filepath"

	"sqlbridge/internal/diag"
	"sqlbridge/internal/lint"
	"sqlbridge/internal/lintcfg"
	"sqlbridge/internal/schedule"
)

// runJob executes one lint job on behalf of the scheduler and returns the
// result count. The scheduler cancels ctx when a newer run for the same
// document starts.
func (s *Server) runJob(ctx context.Context, uri string, version int) int {
	if s.baseCtx != nil && s.baseCtx.Err() != nil {
		// The serving context is gone; resolve without spawning so
		// waiters blocked on a result channel are not stranded.
		return -1
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	text := doc.text
	saved := doc.saved
	s.mu.Unlock()

	path := uriToPath(uri)
	outcome := s.lint.Run(ctx, lint.Document{
		URI:     uri,
		Path:    path,
		Text:    text,
		Version: version,
		Saved:   saved,
		Dir:     filepath.Dir(path),
	})

	switch outcome.Status {
	case lint.StatusCancelled, lint.StatusToolMissing:
		// Superseded or no tool: leave published diagnostics alone.
		return -1
	case lint.StatusTimedOut, lint.StatusToolFailed:
		s.publishDiagnostics(uri, nil)
		return -1
	}

	s.mu.Lock()
	current, stillOpen := s.docs[uri]
	stale := !stillOpen || current.version != version
	s.mu.Unlock()
	if stale {
		// The document moved on during the run; the edit that made this
		// result stale has already requested its own job.
		return -1
	}

	s.publishDiagnostics(uri, outcome.Diagnostics)
	return len(outcome.Diagnostics)
}

func (s *Server) publishDiagnostics(uri string, diags []diag.Diagnostic) {
	list := make([]lspDiagnostic, 0, len(diags))
	for _, d := range diags {
		list = append(list, lspDiagnostic{
			Range: lspRange{
				Start: position{Line: d.StartLine, Character: d.StartChar},
				End:   position{Line: d.EndLine, Character: d.EndChar},
			},
			Severity: int(d.Severity),
			Code:     d.Code,
			Source:   d.Source,
			Message:  d.Message,
		})
	}

	s.mu.Lock()
	if len(list) == 0 {
		if _, had := s.published[uri]; !had {
			s.mu.Unlock()
			return
		}
		delete(s.published, uri)
	} else {
		s.published[uri] = struct{}{}
	}
	s.mu.Unlock()

	if err := s.sendPublish(uri, list); err != nil {
		s.log.Warn().Err(err).Str("uri", uri).Msg("failed to publish diagnostics")
	}
}

// ReloadSettings swaps the effective settings and re-lints every open
// document, so a changed settings file takes effect without restarting.
func (s *Server) ReloadSettings(st lintcfg.Settings) {
	s.mu.Lock()
	s.settings = st
	type docRef struct {
		uri     string
		version int
	}
	open := make([]docRef, 0, len(s.docs))
	for uri, doc := range s.docs {
		open = append(open, docRef{uri: uri, version: doc.version})
	}
	s.mu.Unlock()
	for _, ref := range open {
		s.sched.Request(ref.uri, schedule.ReasonSave, ref.version, 0)
	}
}
