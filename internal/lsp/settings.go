package lsp

import (
	"encoding/json"
	"time"

	"sqlbridge/internal/diag"
)

// lspSettings is the workspace/didChangeConfiguration payload shape. Every
// field is optional; absent fields keep their current value.
type lspSettings struct {
	Sqlbridge struct {
		Linter struct {
			Command        *string  `json:"command"`
			Args           []string `json:"args"`
			Config         *string  `json:"config"`
			TimeoutMs      *int     `json:"timeoutMs"`
			DebounceMs     *int     `json:"debounceMs"`
			MaxConcurrent  *int     `json:"maxConcurrent"`
			MaxOutputBytes *int64   `json:"maxOutputBytes"`
			MinSeverity    *string  `json:"minSeverity"`
		} `json:"linter"`
	} `json:"sqlbridge"`
}

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.applySettings(params.Settings)
	return nil
}

func (s *Server) applySettings(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return
	}
	linter := settings.Sqlbridge.Linter

	s.mu.Lock()
	st := s.settings
	changed := false
	if linter.Command != nil && *linter.Command != "" && *linter.Command != st.Command {
		st.Command = *linter.Command
		changed = true
	}
	if linter.Args != nil {
		st.Args = append([]string(nil), linter.Args...)
		changed = true
	}
	if linter.Config != nil && *linter.Config != st.ConfigPath {
		st.ConfigPath = *linter.Config
		changed = true
	}
	if linter.TimeoutMs != nil && *linter.TimeoutMs > 0 {
		st.Timeout = time.Duration(*linter.TimeoutMs) * time.Millisecond
		changed = true
	}
	if linter.DebounceMs != nil && *linter.DebounceMs >= 0 {
		st.Debounce = time.Duration(*linter.DebounceMs) * time.Millisecond
		changed = true
	}
	if linter.MaxConcurrent != nil && *linter.MaxConcurrent > 0 {
		st.MaxConcurrent = *linter.MaxConcurrent
		changed = true
	}
	if linter.MaxOutputBytes != nil && *linter.MaxOutputBytes > 0 {
		st.MaxOutputBytes = *linter.MaxOutputBytes
		changed = true
	}
	if linter.MinSeverity != nil {
		st.MinSeverity = diag.ParseSeverity(*linter.MinSeverity)
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.ReloadSettings(st)
	}
}
