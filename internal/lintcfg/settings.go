// Package lintcfg resolves the effective sqlbridge settings: which linter
// binary to run, its config file, and the scheduling limits. Settings come
// from a sqlbridge.toml (or .sqlbridge.yaml) discovered by walking up from
// the workspace root; absent files mean defaults.
package lintcfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"

	"sqlbridge/internal/diag"
)

// Defaults.
const (
	DefaultCommand        = "tsqllint"
	DefaultTimeout        = 30 * time.Second
	DefaultDebounce       = 500 * time.Millisecond
	DefaultMaxConcurrent  = 4
	DefaultMaxOutputBytes = 32 << 20
)

// TOMLName and YAMLName are the recognized settings file names.
const (
	TOMLName = "sqlbridge.toml"
	YAMLName = ".sqlbridge.yaml"
)

// ErrNotFound indicates that no settings file exists at or above a path.
var ErrNotFound = errors.New("no settings file found")

// Settings is the effective record the scheduler and process runner
// consume.
type Settings struct {
	// Command is the linter executable name or path.
	Command string
	// Args are extra arguments placed before the target.
	Args []string
	// ConfigPath is the linter's own config file; empty lets the tool
	// use its defaults.
	ConfigPath string
	// Timeout bounds one linter invocation.
	Timeout time.Duration
	// MaxOutputBytes bounds combined stdout+stderr capture.
	MaxOutputBytes int64
	// MaxConcurrent bounds simultaneously running linter processes.
	MaxConcurrent int
	// Debounce delays type-triggered jobs.
	Debounce time.Duration
	// MinSeverity drops less severe diagnostics before publishing.
	MinSeverity diag.Severity
	// LogLevel configures the stderr logger.
	LogLevel string
	// Path is where the settings were loaded from; empty for defaults.
	Path string
}

// Static wraps fixed settings in an accessor, for callers that take a
// settings function but have no reload source.
func (s Settings) Static() func() Settings {
	return func() Settings { return s }
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Command:        DefaultCommand,
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
		MaxConcurrent:  DefaultMaxConcurrent,
		Debounce:       DefaultDebounce,
		MinSeverity:    diag.SevHint,
		LogLevel:       "info",
	}
}

// fileSettings is the on-disk shape shared by the TOML and YAML forms.
type fileSettings struct {
	Linter struct {
		Command        string   `toml:"command" yaml:"command"`
		Args           []string `toml:"args" yaml:"args"`
		Config         string   `toml:"config" yaml:"config"`
		TimeoutMs      int      `toml:"timeout_ms" yaml:"timeout_ms"`
		MaxOutputBytes int64    `toml:"max_output_bytes" yaml:"max_output_bytes"`
	} `toml:"linter" yaml:"linter"`
	Jobs struct {
		MaxConcurrent int `toml:"max_concurrent" yaml:"max_concurrent"`
		DebounceMs    int `toml:"debounce_ms" yaml:"debounce_ms"`
	} `toml:"jobs" yaml:"jobs"`
	Diagnostics struct {
		MinSeverity string `toml:"min_severity" yaml:"min_severity"`
	} `toml:"diagnostics" yaml:"diagnostics"`
	Log struct {
		Level string `toml:"level" yaml:"level"`
	} `toml:"log" yaml:"log"`
}

// Load reads one settings file, TOML or YAML by extension.
func Load(path string) (Settings, error) {
	var file fileSettings
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return Settings{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, err
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return Settings{}, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		return Settings{}, fmt.Errorf("%s: unsupported settings format", path)
	}
	s := merge(Default(), file)
	s.Path = path
	if s.ConfigPath != "" && !filepath.IsAbs(s.ConfigPath) {
		s.ConfigPath = filepath.Join(filepath.Dir(path), s.ConfigPath)
	}
	return clamp(s), nil
}

func merge(base Settings, file fileSettings) Settings {
	if file.Linter.Command != "" {
		base.Command = file.Linter.Command
	}
	if len(file.Linter.Args) > 0 {
		base.Args = append([]string(nil), file.Linter.Args...)
	}
	if file.Linter.Config != "" {
		base.ConfigPath = file.Linter.Config
	}
	if file.Linter.TimeoutMs > 0 {
		base.Timeout = time.Duration(file.Linter.TimeoutMs) * time.Millisecond
	}
	if file.Linter.MaxOutputBytes > 0 {
		base.MaxOutputBytes = file.Linter.MaxOutputBytes
	}
	if file.Jobs.MaxConcurrent != 0 {
		base.MaxConcurrent = file.Jobs.MaxConcurrent
	}
	if file.Jobs.DebounceMs != 0 {
		base.Debounce = time.Duration(file.Jobs.DebounceMs) * time.Millisecond
	}
	if file.Diagnostics.MinSeverity != "" {
		base.MinSeverity = diag.ParseSeverity(file.Diagnostics.MinSeverity)
	}
	if file.Log.Level != "" {
		base.LogLevel = file.Log.Level
	}
	return base
}

// clamp enforces the limits the scheduler depends on: at least one slot,
// non-negative debounce, a positive timeout and output cap.
func clamp(s Settings) Settings {
	if s.MaxConcurrent < 1 {
		s.MaxConcurrent = 1
	}
	if s.Debounce < 0 {
		s.Debounce = 0
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.MaxOutputBytes <= 0 {
		s.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if s.Command == "" {
		s.Command = DefaultCommand
	}
	return s
}

// Resolve walks up from dir looking for a settings file and loads the first
// hit; defaults are returned with ErrNotFound when nothing is found.
func Resolve(dir string) (Settings, error) {
	path, err := Discover(dir)
	if err != nil {
		return Default(), err
	}
	return Load(path)
}

// Discover walks up from dir and returns the nearest settings file path.
// sqlbridge.toml wins over .sqlbridge.yaml within one directory.
func Discover(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range []string{TOMLName, YAMLName} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// LinterRCName is the linter's own config file name, discovered when the
// settings do not name one explicitly.
const LinterRCName = ".tsqllintrc"

// DiscoverLinterConfig walks up from dir and returns the nearest linter
// config file, or empty when there is none. The tool falls back to its own
// defaults in that case.
func DiscoverLinterConfig(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LinterRCName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
