package extract

import (
	"testing"

	"sqlbridge/internal/diag"
)

func TestParseLineFormat(t *testing.T) {
	diags, shape := Parse(Params{
		Text:        "/ws/q.sql(2,5): error Rule-Name : Bad stuff.\n",
		TargetPaths: []string{"/ws/q.sql"},
		Source:      "sqlbridge",
	})
	if shape != ShapeLines {
		t.Fatalf("expected lines shape, got %v", shape)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	d := diags[0]
	if d.Message != "Bad stuff" {
		t.Errorf("message = %q, want %q", d.Message, "Bad stuff")
	}
	if d.Severity != diag.SevError {
		t.Errorf("severity = %v, want error", d.Severity)
	}
	if d.Code != "Rule-Name" {
		t.Errorf("code = %q, want Rule-Name", d.Code)
	}
	if d.StartLine != 1 || d.StartChar != 4 || d.EndLine != 1 || d.EndChar != 5 {
		t.Errorf("unexpected range: %+v", d)
	}
	if d.Source != "sqlbridge" {
		t.Errorf("source = %q", d.Source)
	}
}

func TestParseLineFormatExtraTokens(t *testing.T) {
	diags, shape := Parse(Params{
		Text:        "/ws/q.sql(10,1): warning MSSQL select-star : Avoid wildcards\n",
		TargetPaths: []string{"/ws/q.sql"},
	})
	if shape != ShapeLines || len(diags) != 1 {
		t.Fatalf("expected 1 line diagnostic, got %d (%v)", len(diags), shape)
	}
	if diags[0].Code != "select-star" {
		t.Errorf("code = %q, want select-star", diags[0].Code)
	}
	if diags[0].Severity != diag.SevWarning {
		t.Errorf("severity = %v, want warning", diags[0].Severity)
	}
	if diags[0].Message != "Avoid wildcards" {
		t.Errorf("message = %q", diags[0].Message)
	}
}

func TestParseFullLineRangeWithSource(t *testing.T) {
	diags, _ := Parse(Params{
		Text:        "/ws/q.sql(2,7): error semicolon-termination : Missing semicolon\n",
		TargetPaths: []string{"/ws/q.sql"},
		SourceLines: []string{"SELECT 1", "SELECT id FROM t", ""},
	})
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	d := diags[0]
	if d.StartChar != 0 || d.EndChar != len("SELECT id FROM t") {
		t.Errorf("expected full-line span, got %+v", d)
	}
}

func TestParsePathFiltering(t *testing.T) {
	text := "/ws/q.sql(1,1): error a-rule : Keep\n" +
		"/ws/other.sql(1,1): error a-rule : Drop\n" +
		"q.sql(3,1): warning b-rule : Relative keep\n"
	diags, _ := Parse(Params{
		Text:        text,
		Dir:         "/ws",
		TargetPaths: []string{"/ws/q.sql"},
	})
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics after filtering, got %d", len(diags))
	}
	for _, d := range diags {
		if d.Message == "Drop" {
			t.Fatalf("diagnostic for unrelated file kept: %+v", d)
		}
	}
}

func TestParseStdinPlaceholder(t *testing.T) {
	diags, _ := Parse(Params{
		Text:        "stdin(4,2): error no-select-star : No wildcards\n",
		Dir:         "/ws",
		TargetPaths: []string{"/ws/q.sql", "stdin", "-"},
	})
	if len(diags) != 1 {
		t.Fatalf("expected stdin diagnostic, got %d", len(diags))
	}
}

func TestParseStructured(t *testing.T) {
	text := `{
		"/ws/q.sql": [
			{
				"range": {"start": {"line": 3, "character": 2}, "end": {"line": 3, "character": 9}},
				"severity": 4,
				"rule": "style/alias",
				"message": "Use explicit aliases",
				"fixable": true
			}
		],
		"/ws/other.sql": [
			{
				"range": {"start": {"line": 0, "character": 0}, "end": {"line": 0, "character": 1}},
				"severity": 1,
				"rule": "x",
				"message": "dropped"
			}
		]
	}`
	diags, shape := Parse(Params{
		Text:        text,
		TargetPaths: []string{"/ws/q.sql"},
	})
	if shape != ShapeStructured {
		t.Fatalf("expected structured shape, got %v", shape)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	d := diags[0]
	if d.Severity != diag.SevHint {
		t.Errorf("severity = %v, want hint", d.Severity)
	}
	if d.Code != "style/alias" {
		t.Errorf("code = %q, want style/alias", d.Code)
	}
	// Structured ranges are taken verbatim; the format is column-accurate.
	if d.StartLine != 3 || d.StartChar != 2 || d.EndLine != 3 || d.EndChar != 9 {
		t.Errorf("unexpected range: %+v", d)
	}
}

func TestParseTotal(t *testing.T) {
	cases := []string{
		"",
		"garbage output\nnothing to see\n",
		"{not valid json",
		`{"weird": "shapes", "here": 42}`,
		"(1,2): error : \n",
	}
	for _, text := range cases {
		diags, _ := Parse(Params{Text: text, TargetPaths: []string{"/ws/q.sql"}})
		if len(diags) != 0 {
			t.Errorf("Parse(%q) produced %d diagnostics, want 0", text, len(diags))
		}
	}
}

func TestParseUnparseableShape(t *testing.T) {
	_, shape := Parse(Params{Text: "just noise\n", TargetPaths: []string{"/ws/q.sql"}})
	if shape != ShapeUnparseable {
		t.Fatalf("expected unparseable shape, got %v", shape)
	}
}
