package lint

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// probeTTL caches the availability probe so every keystroke does not hit
// the filesystem or PATH.
const probeTTL = 30 * time.Second

// toolAvailable checks that the configured linter can be invoked. Results,
// positive and negative, are cached for probeTTL.
func (s *Service) toolAvailable(command string) error {
	now := time.Now()
	s.probeMu.Lock()
	defer s.probeMu.Unlock()
	if command == s.probeCmd && now.Before(s.probeExpires) {
		return s.probeErr
	}
	s.probeCmd = command
	s.probeExpires = now.Add(probeTTL)
	s.probeErr = Probe(command)
	return s.probeErr
}

// Probe checks that a linter command resolves to something runnable.
func Probe(command string) error {
	if command == "" {
		return fmt.Errorf("no linter command configured")
	}
	if strings.ContainsRune(command, os.PathSeparator) || strings.ContainsRune(command, '/') {
		info, err := os.Stat(command)
		if err != nil {
			return fmt.Errorf("linter %q not found: %w", command, err)
		}
		if info.IsDir() {
			return fmt.Errorf("linter %q is a directory", command)
		}
		return nil
	}
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("linter %q not found on PATH: %w", command, err)
	}
	return nil
}

// describeExit turns a tool-level failure exit code into a one-line,
// human-readable description. Exit 0/1 mean success with or without
// findings; anything at or above 2 is a tool failure.
func describeExit(code int, stderr string) string {
	detail := firstLine(stderr)
	switch code {
	case 2:
		msg := "linter reported a parse or configuration error"
		if detail != "" {
			msg += ": " + detail
		}
		return msg
	default:
		msg := fmt.Sprintf("linter exited with code %d", code)
		if detail != "" {
			msg += ": " + detail
		}
		return msg
	}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
