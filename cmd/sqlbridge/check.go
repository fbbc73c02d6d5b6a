package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sqlbridge/internal/checkrun"
	"sqlbridge/internal/diag"
	"sqlbridge/internal/diagfmt"
	"sqlbridge/internal/lint"
	"sqlbridge/internal/logx"
	"sqlbridge/internal/ui"
	"sqlbridge/internal/version"
)

var (
	checkFormat      string
	checkSettings    string
	checkNoCache     bool
	checkNoProgress  bool
	checkMinSeverity string
)

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "pretty", "output format (pretty|json|sarif)")
	checkCmd.Flags().StringVar(&checkSettings, "settings", "", "settings file (default: discovered from the working directory)")
	checkCmd.Flags().BoolVar(&checkNoCache, "no-cache", false, "disable the lint result cache")
	checkCmd.Flags().BoolVar(&checkNoProgress, "no-progress", false, "disable the progress display")
	checkCmd.Flags().StringVar(&checkMinSeverity, "min-severity", "", "drop findings below this severity (error|warning|info|hint)")
}

var checkCmd = &cobra.Command{
	Use:          "check [files or directories]",
	Short:        "Lint SQL files and print the findings",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	switch checkFormat {
	case "pretty", "json", "sarif":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty, json or sarif)", checkFormat)
	}

	_, settings, err := loadSettings(checkSettings)
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		settings.LogLevel = flagLogLevel
	}
	if checkMinSeverity != "" {
		settings.MinSeverity = diag.ParseSeverity(checkMinSeverity)
	}
	log := logx.Stderr(settings.LogLevel)

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .sql files found")
	}

	var cache *lint.Cache
	if !checkNoCache {
		if path := lint.DefaultCachePath(); path != "" {
			cache = lint.OpenCache(path)
		}
	}

	opts := checkrun.Options{
		Settings: settings,
		Cache:    cache,
		Log:      log,
	}

	showProgress := checkFormat == "pretty" && !checkNoProgress && isTerminal(os.Stdout)
	var reports []checkrun.FileReport
	if showProgress {
		events := make(chan checkrun.Event, len(files)*3)
		opts.Events = events
		done := make(chan struct{})
		go func() {
			defer close(done)
			reports, err = checkrun.Run(cmd.Context(), files, opts)
		}()
		model := ui.NewProgressModel("linting", files, events)
		if _, teaErr := tea.NewProgram(model, tea.WithOutput(os.Stderr)).Run(); teaErr != nil {
			log.Warn().Err(teaErr).Msg("progress display failed")
		}
		<-done
	} else {
		reports, err = checkrun.Run(cmd.Context(), files, opts)
	}
	if err != nil {
		return err
	}

	results := checkrun.Results(reports)
	out := cmd.OutOrStdout()
	switch checkFormat {
	case "json":
		if err := diagfmt.JSON(out, results, diagfmt.JSONOpts{}); err != nil {
			return err
		}
	case "sarif":
		if err := diagfmt.Sarif(out, results, diagfmt.SarifRunMeta{
			ToolName:       "sqlbridge",
			ToolVersion:    version.Plain,
			InvocationArgs: os.Args[1:],
		}); err != nil {
			return err
		}
	default:
		diagfmt.Pretty(out, results, diagfmt.PrettyOpts{
			Color:   colorEnabled(),
			Context: true,
		})
		diagfmt.Summary(out, results, colorEnabled())
	}

	for _, report := range reports {
		if report.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", report.Path, report.Err)
		} else if report.Outcome.Status != lint.StatusOK {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", report.Path, report.Outcome.Detail)
		}
	}

	if code := checkrun.ExitCode(reports); code != 0 {
		os.Exit(code)
	}
	return nil
}

// collectFiles expands arguments into a sorted, deduplicated list of .sql
// files. Directories are walked recursively.
func collectFiles(args []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if strings.EqualFold(filepath.Ext(path), ".sql") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
