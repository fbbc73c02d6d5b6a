package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sqlbridge/internal/lint"
	"sqlbridge/internal/lintcfg"
)

var doctorCmd = &cobra.Command{
	Use:          "doctor",
	Short:        "Check that sqlbridge can find its settings and the linter",
	SilenceUsage: true,
	RunE:         runDoctor,
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	failed := false

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	settings := lintcfg.Default()
	path, err := lintcfg.Discover(wd)
	switch {
	case err == nil:
		loaded, loadErr := lintcfg.Load(path)
		if loadErr != nil {
			report(out, false, fmt.Sprintf("settings file %s: %v", path, loadErr))
			failed = true
		} else {
			settings = loaded
			report(out, true, fmt.Sprintf("settings file %s", path))
		}
	case errors.Is(err, lintcfg.ErrNotFound):
		report(out, true, "no settings file, using defaults")
	default:
		report(out, false, fmt.Sprintf("settings discovery: %v", err))
		failed = true
	}

	if probeErr := lint.Probe(settings.Command); probeErr != nil {
		report(out, false, probeErr.Error())
		failed = true
	} else {
		resolved := settings.Command
		if found, lookErr := exec.LookPath(settings.Command); lookErr == nil {
			resolved = found
		}
		report(out, true, fmt.Sprintf("linter %s", resolved))
	}

	if settings.ConfigPath != "" {
		if _, statErr := os.Stat(settings.ConfigPath); statErr != nil {
			report(out, false, fmt.Sprintf("linter config %s: %v", settings.ConfigPath, statErr))
			failed = true
		} else {
			report(out, true, fmt.Sprintf("linter config %s", settings.ConfigPath))
		}
	}

	if cachePath := lint.DefaultCachePath(); cachePath != "" {
		report(out, true, fmt.Sprintf("result cache %s", cachePath))
	} else {
		report(out, true, "result cache disabled (no user cache directory)")
	}

	fmt.Fprintf(out, "\ntimeout %s, debounce %s, %d concurrent runs\n",
		settings.Timeout, settings.Debounce, settings.MaxConcurrent)

	if failed {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func report(out io.Writer, ok bool, message string) {
	mark := color.New(color.FgGreen).Sprint("ok")
	if !ok {
		mark = color.New(color.FgRed, color.Bold).Sprint("fail")
	}
	fmt.Fprintf(out, "%4s  %s\n", mark, message)
}
