package textenc

import (
	"strings"
	"testing"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

func TestDecodeUTF8Passthrough(t *testing.T) {
	input := "SELECT * FROM users; -- コメント"
	got := Decode([]byte(input))
	if got != input {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestDecodeStripsBOM(t *testing.T) {
	raw := append([]byte{0xEF, 0xBB, 0xBF}, []byte("select 1")...)
	if got := Decode(raw); got != "select 1" {
		t.Fatalf("expected BOM stripped, got %q", got)
	}
}

func TestDecodeEmpty(t *testing.T) {
	if got := Decode(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got := Decode([]byte{0xEF, 0xBB, 0xBF}); got != "" {
		t.Fatalf("expected empty string for bare BOM, got %q", got)
	}
}

func TestDecodeToleratesIsolatedCorruption(t *testing.T) {
	// One bad byte in a long ASCII run stays under the replacement
	// threshold, so the UTF-8 decode wins without a detection pass.
	raw := append([]byte(strings.Repeat("select column_name from table_x;\n", 10)), 0xFF)
	got := Decode(raw)
	if !strings.Contains(got, "select column_name") {
		t.Fatalf("expected UTF-8 decode to be kept, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("decode produced invalid UTF-8")
	}
}

func TestDecodeTotal(t *testing.T) {
	inputs := [][]byte{
		{0xFF, 0xFE, 0xFD},
		{0x82},
		[]byte("plain"),
		{0xE3, 0x81}, // truncated multi-byte sequence
	}
	for _, raw := range inputs {
		got := Decode(raw)
		if !utf8.ValidString(got) {
			t.Errorf("Decode(% X) produced invalid UTF-8: %q", raw, got)
		}
	}
}

func TestDecodeShiftJIS(t *testing.T) {
	// A long Shift-JIS text so the statistical detector has enough signal.
	text := strings.Repeat("構文エラーが発生しました。検査の結果を確認してください。", 8)
	raw, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	got := Decode(raw)
	if got != text {
		t.Fatalf("expected Shift-JIS roundtrip, got %q", got)
	}
}

func TestLookupEncodingAliases(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"shift-jis", "sjis"},
		{"Shift_JIS", "sjis"},
		{"windows-31j", "sjis"},
		{"CP932", "sjis"},
		{"cp1252", "win1252"},
		{"windows-1252", "win1252"},
		{"EUC-JP", "eucjp"},
	}
	for _, tc := range cases {
		enc := lookupEncoding(tc.name)
		if enc == nil {
			t.Errorf("lookupEncoding(%q) = nil", tc.name)
			continue
		}
		switch tc.want {
		case "sjis":
			if enc != japanese.ShiftJIS {
				t.Errorf("lookupEncoding(%q) did not map to Shift-JIS", tc.name)
			}
		case "win1252":
			if enc != charmap.Windows1252 {
				t.Errorf("lookupEncoding(%q) did not map to Windows-1252", tc.name)
			}
		case "eucjp":
			if enc != japanese.EUCJP {
				t.Errorf("lookupEncoding(%q) did not map to EUC-JP", tc.name)
			}
		}
	}
	if enc := lookupEncoding("utf-8"); enc != nil {
		t.Errorf("utf-8 should resolve to nil (initial attempt covers it)")
	}
	if enc := lookupEncoding("no-such-charset-000"); enc != nil {
		t.Errorf("unknown charset should resolve to nil")
	}
}
