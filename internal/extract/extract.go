// Package extract turns decoded linter output into structured diagnostics.
// The linter has two wire formats: the line-oriented text its stock build
// prints, and a JSON record format emitted by builds invoked with a JSON
// format flag. The line format is the primary contract; JSON is kept as a
// compatibility shim. Extraction is total: malformed input yields zero
// diagnostics, never an error.
package extract

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"sqlbridge/internal/diag"
)

// Shape reports which wire format the output was recognized as.
type Shape uint8

const (
	// ShapeUnparseable means no record in the output could be understood.
	ShapeUnparseable Shape = iota
	// ShapeLines means the line-oriented text format matched.
	ShapeLines
	// ShapeStructured means the JSON record format matched.
	ShapeStructured
)

func (s Shape) String() string {
	switch s {
	case ShapeLines:
		return "lines"
	case ShapeStructured:
		return "structured"
	}
	return "unparseable"
}

// Params carries one extraction request.
type Params struct {
	// Text is the decoded linter output.
	Text string
	// Dir resolves relative reported paths.
	Dir string
	// TargetPaths are the acceptable identities of the linted document:
	// its real path, the stdin placeholder the tool echoes back, and any
	// temp-file alias. Records about other paths are dropped.
	TargetPaths []string
	// SourceLines, when supplied, widens line-format ranges to the whole
	// reported line; the tool's column numbers are not reliable enough to
	// produce a narrower span.
	SourceLines []string
	// Source labels the emitted diagnostics (the "source" field editors
	// show next to the message).
	Source string
}

// `<path>(<line>,<col>): <severity> [extra tokens] <rule> : <message>`
// with an optional trailing period. The lazy token group makes the rule the
// last token before the " : " separator.
var lineRe = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\):\s+(\S+)(?:\s+\S+)*?\s+(\S+)\s+:\s+(.*?)\s*$`)

// Parse extracts diagnostics from linter output. The structured JSON format
// is attempted first; on failure the text is scanned line by line.
// Unparseable lines and records are skipped silently.
func Parse(p Params) ([]diag.Diagnostic, Shape) {
	targets := targetSet(p.Dir, p.TargetPaths)
	if diags, ok := parseStructured(p, targets); ok {
		return diags, ShapeStructured
	}
	diags := parseLines(p, targets)
	if len(diags) == 0 && !anyLineMatches(p.Text) {
		return nil, ShapeUnparseable
	}
	return diags, ShapeLines
}

func anyLineMatches(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if lineRe.MatchString(strings.TrimRight(line, "\r")) {
			return true
		}
	}
	return false
}

func parseLines(p Params, targets map[string]struct{}) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, raw := range strings.Split(p.Text, "\n") {
		line := strings.TrimRight(raw, "\r")
		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if !pathMatches(m[1], p.Dir, targets) {
			continue
		}
		reportedLine, err := strconv.Atoi(m[2])
		if err != nil || reportedLine < 1 {
			continue
		}
		reportedCol, err := strconv.Atoi(m[3])
		if err != nil || reportedCol < 1 {
			continue
		}
		message := strings.TrimSuffix(strings.TrimSpace(m[6]), ".")
		d := diag.Diagnostic{
			Message:  message,
			Severity: diag.ParseSeverity(m[4]),
			Code:     m[5],
			Source:   p.Source,
		}
		d.StartLine = reportedLine - 1
		d.EndLine = d.StartLine
		if d.StartLine < len(p.SourceLines) {
			d.StartChar = 0
			d.EndChar = utf8.RuneCountInString(p.SourceLines[d.StartLine])
		} else {
			d.StartChar = reportedCol - 1
			d.EndChar = reportedCol
		}
		out = append(out, d)
	}
	return out
}

// Structured format: a top-level object mapping analyzed file paths to
// violation records.
type structuredRecord struct {
	Range    structuredRange `json:"range"`
	Severity int             `json:"severity"`
	Rule     string          `json:"rule"`
	Message  string          `json:"message"`
	Fixable  bool            `json:"fixable"`
}

type structuredRange struct {
	Start structuredPos `json:"start"`
	End   structuredPos `json:"end"`
}

type structuredPos struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

func parseStructured(p Params, targets map[string]struct{}) ([]diag.Diagnostic, bool) {
	trimmed := strings.TrimSpace(p.Text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	var byPath map[string][]structuredRecord
	if err := json.Unmarshal([]byte(trimmed), &byPath); err != nil {
		// Malformed JSON degrades to zero diagnostics rather than
		// falling through to the line parser: a brace-led payload is
		// never the text format.
		return nil, true
	}
	var out []diag.Diagnostic
	for path, records := range byPath {
		if !pathMatches(path, p.Dir, targets) {
			continue
		}
		for _, rec := range records {
			if rec.Message == "" && rec.Rule == "" {
				continue
			}
			out = append(out, diag.Diagnostic{
				Message:   rec.Message,
				Severity:  diag.SeverityFromCode(rec.Severity),
				StartLine: maxZero(rec.Range.Start.Line),
				StartChar: maxZero(rec.Range.Start.Character),
				EndLine:   maxZero(rec.Range.End.Line),
				EndChar:   maxZero(rec.Range.End.Character),
				Code:      rec.Rule,
				Source:    p.Source,
			})
		}
	}
	return out, true
}

func targetSet(dir string, paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths)*2)
	for _, p := range paths {
		if p == "" {
			continue
		}
		set[normalizePath(p)] = struct{}{}
		if dir != "" && !filepath.IsAbs(p) {
			set[normalizePath(filepath.Join(dir, p))] = struct{}{}
		}
	}
	return set
}

func pathMatches(reported, dir string, targets map[string]struct{}) bool {
	if len(targets) == 0 {
		return true
	}
	reported = strings.TrimSpace(reported)
	if _, ok := targets[normalizePath(reported)]; ok {
		return true
	}
	if dir != "" && !filepath.IsAbs(reported) {
		if _, ok := targets[normalizePath(filepath.Join(dir, reported))]; ok {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	candidate := filepath.Clean(filepath.FromSlash(p))
	if abs, err := filepath.Abs(candidate); err == nil && filepath.IsAbs(candidate) {
		candidate = abs
	}
	return strings.ToLower(filepath.ToSlash(candidate))
}

func maxZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
