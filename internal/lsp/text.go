package lsp

import (
	"strings"
	"unicode/utf8"
)

// applyChanges folds a didChange batch into text. A change without a range
// replaces the whole document. Ranges use UTF-16 code unit columns, as the
// protocol requires.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, ch := range changes {
		if ch.Range == nil {
			text = ch.Text
			continue
		}
		start := offsetForPosition(text, ch.Range.Start)
		end := offsetForPosition(text, ch.Range.End)
		if end < start {
			start, end = end, start
		}
		text = text[:start] + ch.Text + text[end:]
	}
	return text
}

// offsetForPosition converts a line/character position into a byte offset.
// Positions past the end of a line or the document clamp instead of failing.
func offsetForPosition(text string, pos position) int {
	offset := 0
	for line := 0; line < pos.Line; line++ {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			return len(text)
		}
		offset += nl + 1
	}
	lineEnd := len(text)
	if nl := strings.IndexByte(text[offset:], '\n'); nl >= 0 {
		lineEnd = offset + nl
	}
	units := 0
	for offset < lineEnd {
		if units >= pos.Character {
			break
		}
		r, size := utf8.DecodeRuneInString(text[offset:lineEnd])
		if r >= 0x10000 {
			units += 2
		} else {
			units++
		}
		offset += size
	}
	return offset
}
