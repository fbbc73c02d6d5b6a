package lsp

import (
	"path/filepath"
	"testing"
)

func TestApplyChangesFullReplacement(t *testing.T) {
	got := applyChanges("old", []textDocumentContentChangeEvent{{Text: "new"}})
	if got != "new" {
		t.Fatalf("expected %q, got %q", "new", got)
	}
}

func TestApplyChangesRange(t *testing.T) {
	text := "select 1\nselect 2\n"
	got := applyChanges(text, []textDocumentContentChangeEvent{{
		Range: &lspRange{
			Start: position{Line: 1, Character: 7},
			End:   position{Line: 1, Character: 8},
		},
		Text: "42",
	}})
	want := "select 1\nselect 42\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestOffsetForPositionClamps(t *testing.T) {
	text := "ab\ncd"
	if got := offsetForPosition(text, position{Line: 0, Character: 99}); got != 2 {
		t.Fatalf("expected clamp to end of line, got %d", got)
	}
	if got := offsetForPosition(text, position{Line: 9, Character: 0}); got != len(text) {
		t.Fatalf("expected clamp to end of text, got %d", got)
	}
}

func TestOffsetForPositionUTF16(t *testing.T) {
	// The emoji occupies two UTF-16 code units and four bytes.
	text := "a\U0001F600b"
	if got := offsetForPosition(text, position{Line: 0, Character: 3}); got != 5 {
		t.Fatalf("expected byte offset 5, got %d", got)
	}
}

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a b", "query.sql")
	uri := pathToURI(path)
	if got := uriToPath(uri); got != path {
		t.Fatalf("expected %q, got %q", path, got)
	}
	if canonicalURI(uri) != uri {
		t.Fatalf("expected canonical uri to be stable, got %q", canonicalURI(uri))
	}
}
