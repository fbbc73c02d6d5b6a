// Package textenc turns raw linter output bytes into text. The external
// tool inherits the console encoding of whatever shell launched it, so the
// bytes are not guaranteed to be UTF-8; decoding falls back through charset
// detection and a locale default and never fails.
package textenc

import (
	"bytes"
	"os"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Below this ratio of replacement characters the UTF-8 decode is accepted
// as-is, tolerating isolated corruption without a detection pass.
const replacementThreshold = 0.01

// Decode converts raw process output into a string. It is total: any byte
// sequence yields a string, degrading to a lossy UTF-8 decode when nothing
// better can be done.
func Decode(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(raw) == 0 {
		return ""
	}

	lossy := strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	if replacementRatio(lossy) < replacementThreshold {
		return lossy
	}

	if enc := detectEncoding(raw); enc != nil {
		if decoded, err := enc.NewDecoder().Bytes(raw); err == nil {
			return string(decoded)
		}
	}

	if enc := platformDefault(); enc != nil {
		if decoded, err := enc.NewDecoder().Bytes(raw); err == nil {
			return string(decoded)
		}
	}
	return lossy
}

func replacementRatio(s string) float64 {
	total := utf8.RuneCountInString(s)
	if total == 0 {
		return 0
	}
	bad := strings.Count(s, string(utf8.RuneError))
	return float64(bad) / float64(total)
}

func detectEncoding(raw []byte) encoding.Encoding {
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil {
		return nil
	}
	return lookupEncoding(result.Charset)
}

// lookupEncoding resolves a detected charset name to a decoder. Detectors
// and linter consoles disagree on names, so common aliases are folded to one
// canonical encoding before consulting the IANA index.
func lookupEncoding(name string) encoding.Encoding {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	switch key {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		// Already covered by the initial UTF-8 attempt.
		return nil
	case "shift-jis", "shiftjis", "sjis", "windows-31j", "cp932", "ms932", "ms-kanji":
		return japanese.ShiftJIS
	case "euc-jp", "eucjp":
		return japanese.EUCJP
	case "iso-2022-jp", "csiso2022jp":
		return japanese.ISO2022JP
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	case "iso-8859-1", "latin1", "latin-1", "cp819":
		return charmap.ISO8859_1
	case "windows-1251", "cp1251":
		return charmap.Windows1251
	case "koi8-r":
		return charmap.KOI8R
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil
	}
	return enc
}

// platformDefault picks the encoding a console most plausibly used when
// detection gives nothing usable. Non-Windows consoles are assumed UTF-8
// (the lossy attempt already covers that, so nil is returned); Windows
// consoles use CP932 under a Japanese locale and Windows-1252 otherwise.
func platformDefault() encoding.Encoding {
	if runtime.GOOS != "windows" {
		return nil
	}
	if localeIsJapanese() {
		return japanese.ShiftJIS
	}
	return charmap.Windows1252
}

func localeIsJapanese() bool {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG", "LANGUAGE"} {
		value := strings.ToLower(os.Getenv(key))
		if strings.HasPrefix(value, "ja") {
			return true
		}
	}
	return false
}
