package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sqlbridge/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "sqlbridge",
	Short: "SQL lint bridge for editors and pipelines",
	Long:  `sqlbridge runs an external SQL linter behind a language server or a one-shot batch check`,
}

var (
	flagColor    string
	flagLogLevel string
)

func main() {
	rootCmd.Version = version.Plain

	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (trace|debug|info|warn|error|off)")

	cobra.OnInitialize(applyColorMode)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyColorMode() {
	switch flagColor {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}

func colorEnabled() bool {
	return !color.NoColor
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
