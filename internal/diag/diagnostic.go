package diag

import "sort"

// Diagnostic is a single located finding extracted from linter output.
// Positions are zero-based, matching the LSP wire encoding.
type Diagnostic struct {
	Message   string
	Severity  Severity
	StartLine int
	StartChar int
	EndLine   int
	EndChar   int
	Code      string
	Source    string
}

// Sort orders diagnostics by start, end, severity (most severe first) and
// code for a stable, deterministic output order.
func Sort(items []Diagnostic) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i], items[j]
		if di.StartLine != dj.StartLine {
			return di.StartLine < dj.StartLine
		}
		if di.StartChar != dj.StartChar {
			return di.StartChar < dj.StartChar
		}
		if di.EndLine != dj.EndLine {
			return di.EndLine < dj.EndLine
		}
		if di.EndChar != dj.EndChar {
			return di.EndChar < dj.EndChar
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		return di.Code < dj.Code
	})
}

// FilterMin drops diagnostics less severe than min. The input slice is not
// modified.
func FilterMin(items []Diagnostic, min Severity) []Diagnostic {
	out := make([]Diagnostic, 0, len(items))
	for _, d := range items {
		if d.Severity.AtLeast(min) {
			out = append(out, d)
		}
	}
	return out
}

// CountAtLeast reports how many diagnostics are at least as severe as min.
func CountAtLeast(items []Diagnostic, min Severity) int {
	n := 0
	for _, d := range items {
		if d.Severity.AtLeast(min) {
			n++
		}
	}
	return n
}
