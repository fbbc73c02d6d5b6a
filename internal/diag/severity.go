package diag

import "strings"

// Severity defines the importance of a diagnostic. The numeric values match
// the LSP DiagnosticSeverity encoding, so a lower value is more severe.
type Severity uint8

const (
	// SevError is for findings that must be fixed.
	SevError Severity = iota + 1
	// SevWarning is for findings that should be fixed.
	SevWarning
	// SevInfo is for informational findings.
	SevInfo
	// SevHint is for stylistic suggestions.
	SevHint
)

func (s Severity) String() string {
	switch s {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	case SevInfo:
		return "info"
	case SevHint:
		return "hint"
	}
	return "unknown"
}

// ParseSeverity maps a textual severity reported by the linter. Anything
// unrecognized (including "information") maps to SevInfo.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "error":
		return SevError
	case "warning":
		return SevWarning
	case "hint":
		return SevHint
	default:
		return SevInfo
	}
}

// SeverityFromCode maps the structured format's numeric severity code.
// Unknown codes map to SevInfo.
func SeverityFromCode(code int) Severity {
	switch code {
	case 1:
		return SevError
	case 2:
		return SevWarning
	case 4:
		return SevHint
	default:
		return SevInfo
	}
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s <= min
}
