package diag

import "testing"

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		raw  string
		want Severity
	}{
		{"error", SevError},
		{"Error", SevError},
		{" warning ", SevWarning},
		{"hint", SevHint},
		{"information", SevInfo},
		{"bogus", SevInfo},
		{"", SevInfo},
	}
	for _, tc := range cases {
		if got := ParseSeverity(tc.raw); got != tc.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestSeverityFromCode(t *testing.T) {
	cases := []struct {
		code int
		want Severity
	}{
		{1, SevError},
		{2, SevWarning},
		{3, SevInfo},
		{4, SevHint},
		{0, SevInfo},
		{99, SevInfo},
	}
	for _, tc := range cases {
		if got := SeverityFromCode(tc.code); got != tc.want {
			t.Errorf("SeverityFromCode(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestFilterMin(t *testing.T) {
	items := []Diagnostic{
		{Code: "a", Severity: SevError},
		{Code: "b", Severity: SevHint},
		{Code: "c", Severity: SevWarning},
	}
	got := FilterMin(items, SevWarning)
	if len(got) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(got))
	}
	if got[0].Code != "a" || got[1].Code != "c" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if n := CountAtLeast(items, SevError); n != 1 {
		t.Fatalf("CountAtLeast(error) = %d, want 1", n)
	}
}

func TestSortStable(t *testing.T) {
	items := []Diagnostic{
		{StartLine: 2, Code: "b"},
		{StartLine: 1, StartChar: 4, Severity: SevWarning, Code: "c"},
		{StartLine: 1, StartChar: 4, Severity: SevError, Code: "a"},
	}
	Sort(items)
	if items[0].Code != "a" || items[1].Code != "c" || items[2].Code != "b" {
		t.Fatalf("unexpected order: %+v", items)
	}
}
