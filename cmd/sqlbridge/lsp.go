package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"sqlbridge/internal/lint"
	"sqlbridge/internal/lintcfg"
	"sqlbridge/internal/logx"
	"sqlbridge/internal/lsp"
)

var (
	lspSettingsPath string
	lspNoCache      bool
)

func init() {
	lspCmd.Flags().StringVar(&lspSettingsPath, "settings", "", "settings file (default: discovered from the working directory)")
	lspCmd.Flags().BoolVar(&lspNoCache, "no-cache", false, "disable the lint result cache")
}

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the sqlbridge language server over stdio",
	SilenceUsage: true,
	RunE:         runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
	settingsPath, settings, err := loadSettings(lspSettingsPath)
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		settings.LogLevel = flagLogLevel
	}
	log := logx.Stderr(settings.LogLevel)

	var cache *lint.Cache
	if !lspNoCache {
		if path := lint.DefaultCachePath(); path != "" {
			cache = lint.OpenCache(path)
		}
	}

	server := lsp.NewServer(os.Stdin, os.Stdout, lsp.ServerOptions{
		Settings: settings,
		Cache:    cache,
		Log:      log,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if settingsPath != "" {
		go watchSettings(ctx, settingsPath, log, server)
	}

	if err := server.Run(ctx); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}

// loadSettings resolves the effective settings: an explicit path, a file
// discovered from the working directory, or the defaults.
func loadSettings(explicit string) (string, lintcfg.Settings, error) {
	if explicit != "" {
		settings, err := lintcfg.Load(explicit)
		if err != nil {
			return "", settings, err
		}
		return explicit, settings, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", lintcfg.Default(), err
	}
	settings, err := lintcfg.Resolve(wd)
	if errors.Is(err, lintcfg.ErrNotFound) {
		return "", lintcfg.Default(), nil
	}
	if err != nil {
		return "", settings, err
	}
	return settings.Path, settings, nil
}

func watchSettings(ctx context.Context, path string, log zerolog.Logger, server *lsp.Server) {
	err := lintcfg.Watch(ctx, path, log, func() {
		settings, err := lintcfg.Load(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("settings reload failed")
			return
		}
		log.Info().Str("path", path).Msg("settings reloaded")
		server.ReloadSettings(settings)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("path", path).Msg("settings watcher stopped")
	}
}
