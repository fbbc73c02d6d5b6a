package diagfmt

import (
	"encoding/json"
	"io"
)

// DiagnosticJSON is the stable machine-readable form of one finding.
// Positions are one-based, matching the terminal form.
type DiagnosticJSON struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Severity  string `json:"severity"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
}

// DiagnosticsOutput is the root of the JSON form.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Truncated   bool             `json:"truncated,omitempty"`
}

// JSON writes the findings as one indented JSON document.
func JSON(w io.Writer, results []FileResult, opts JSONOpts) error {
	out := DiagnosticsOutput{Diagnostics: []DiagnosticJSON{}}
	for _, res := range results {
		path := formatPath(res.Path, opts.PathMode)
		for _, d := range res.Diags {
			out.Count++
			if opts.Max > 0 && len(out.Diagnostics) >= opts.Max {
				out.Truncated = true
				continue
			}
			out.Diagnostics = append(out.Diagnostics, DiagnosticJSON{
				File:      path,
				StartLine: d.StartLine + 1,
				StartCol:  d.StartChar + 1,
				EndLine:   d.EndLine + 1,
				EndCol:    d.EndChar + 1,
				Severity:  d.Severity.String(),
				Code:      d.Code,
				Message:   d.Message,
			})
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
