// Package diagfmt renders extracted diagnostics for humans and machines:
// a colorized terminal form, a stable JSON form and SARIF.
package diagfmt

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"sqlbridge/internal/diag"
)

// FileResult pairs one file's diagnostics with enough context to render
// them.
type FileResult struct {
	Path string
	// Lines holds the analyzed content split by newline; empty disables
	// context rendering for this file.
	Lines []string
	Diags []diag.Diagnostic
}

// Pretty writes one block per diagnostic:
//
//	<path>:<line>:<col>: <severity> <code>: <message>
//
// followed, when context is enabled and the source line is known, by the
// line itself with a caret underline over the flagged span.
func Pretty(w io.Writer, results []FileResult, opts PrettyOpts) {
	for _, res := range results {
		path := formatPath(res.Path, opts.PathMode)
		for _, d := range res.Diags {
			writeHeading(w, path, d, opts.Color)
			if opts.Context {
				writeContext(w, res.Lines, d, opts)
			}
		}
	}
}

func writeHeading(w io.Writer, path string, d diag.Diagnostic, colored bool) {
	sev := d.Severity.String()
	code := d.Code
	if colored {
		sev = severityColor(d.Severity).Sprint(sev)
		if code != "" {
			code = color.New(color.Faint).Sprint(code)
		}
	}
	if code != "" {
		fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n", path, d.StartLine+1, d.StartChar+1, sev, code, d.Message)
		return
	}
	fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", path, d.StartLine+1, d.StartChar+1, sev, d.Message)
}

func writeContext(w io.Writer, lines []string, d diag.Diagnostic, opts PrettyOpts) {
	if d.StartLine < 0 || d.StartLine >= len(lines) {
		return
	}
	line := strings.ReplaceAll(lines[d.StartLine], "\t", "    ")
	if opts.Width > 0 {
		line = runewidth.Truncate(line, opts.Width, "…")
	}

	src := lines[d.StartLine]
	start := byteOffset(src, d.StartChar)
	end := byteOffset(src, d.EndChar)
	if d.EndLine != d.StartLine || end < start {
		end = start
	}
	prefix := runewidth.StringWidth(strings.ReplaceAll(src[:start], "\t", "    "))
	span := runewidth.StringWidth(sliceSafe(src, start, end))
	if span < 1 {
		span = 1
	}

	underline := strings.Repeat(" ", prefix) + "^" + strings.Repeat("~", span-1)
	if opts.Width > 0 && len(underline) > opts.Width {
		underline = underline[:opts.Width]
	}
	if opts.Color {
		underline = severityColor(d.Severity).Sprint(underline)
	}
	fmt.Fprintf(w, "    %s\n    %s\n", line, underline)
}

// byteOffset converts a character index into a byte offset into line.
// Diagnostic columns count characters, so multibyte source needs the
// translation before slicing.
func byteOffset(line string, chars int) int {
	for i := range line {
		if chars == 0 {
			return i
		}
		chars--
	}
	return len(line)
}

func sliceSafe(s string, start, end int) string {
	if start > len(s) {
		start = len(s)
	}
	if end > len(s) {
		end = len(s)
	}
	if end < start {
		end = start
	}
	return s[start:end]
}

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		return color.New(color.FgYellow)
	case diag.SevInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.Faint)
	}
}

func formatPath(path string, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeRelative, PathModeAuto:
		wd, err := os.Getwd()
		if err != nil {
			return path
		}
		rel, err := filepath.Rel(wd, path)
		if err != nil || (mode == PathModeAuto && strings.HasPrefix(rel, "..")) {
			return path
		}
		return rel
	}
	return path
}

// Summary writes the classic one-line tally.
func Summary(w io.Writer, results []FileResult, colored bool) {
	var errors, warnings, rest int
	for _, res := range results {
		for _, d := range res.Diags {
			switch d.Severity {
			case diag.SevError:
				errors++
			case diag.SevWarning:
				warnings++
			default:
				rest++
			}
		}
	}
	total := errors + warnings + rest
	if total == 0 {
		line := "no problems found"
		if colored {
			line = color.New(color.FgGreen).Sprint(line)
		}
		fmt.Fprintln(w, line)
		return
	}
	parts := []string{fmt.Sprintf("%d problem(s)", total)}
	if errors > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", errors))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", warnings))
	}
	line := strings.Join(parts, ", ")
	if colored && errors > 0 {
		line = color.New(color.FgRed).Sprint(line)
	} else if colored && warnings > 0 {
		line = color.New(color.FgYellow).Sprint(line)
	}
	fmt.Fprintln(w, line)
}
