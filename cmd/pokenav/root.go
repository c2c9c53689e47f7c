package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/poku-e/pokenav/internal/config"
	"github.com/poku-e/pokenav/internal/header"
	"github.com/poku-e/pokenav/internal/logx"
	"github.com/poku-e/pokenav/internal/nameindex"
	"github.com/poku-e/pokenav/internal/resource"
	"github.com/poku-e/pokenav/internal/search"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pokenav",
	Short: "Shared header and name search for a static Pokédex site",
	Long: `pokenav installs the shared navigation header on every page of a static
Pokédex site and runs the header's name search, either as a server
(pokenav serve) or by rewriting the pages on disk (pokenav inject).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "pokenav.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `pokenav config init` to create a config file", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logger := logx.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// newFetcher reads resources over HTTP when data_url is set, else from the
// site directory.
func newFetcher(cfg *config.Config) (resource.Fetcher, error) {
	if cfg.DataURL != "" {
		return resource.NewHTTPFetcher(cfg.DataURL, cfg.Server.FetchTimeout)
	}
	return resource.NewDirFetcher(cfg.SiteDir), nil
}

func newInstaller(cfg *config.Config, fetcher resource.Fetcher, logger *slog.Logger) *header.Installer {
	opts := header.DefaultOptions()
	opts.Fragment = cfg.Header.Fragment
	opts.Height = cfg.Header.Height
	opts.Margin = cfg.Header.Margin
	opts.Brand = cfg.Header.Brand
	return header.NewInstaller(fetcher, opts, logger)
}

func newLoader(cfg *config.Config, fetcher resource.Fetcher, logger *slog.Logger) *nameindex.Loader {
	return nameindex.NewLoader(fetcher, cfg.Index.Resource, logger)
}

func searchOptions(cfg *config.Config) search.Options {
	return search.Options{
		Delay:      cfg.Search.Debounce,
		Limit:      cfg.Search.Limit,
		DetailPage: cfg.Search.DetailPage,
	}
}

const shutdownTimeout = 10 * time.Second
