package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/poku-e/pokenav/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site with the header installed and live search enabled",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().String("site", "", "site directory (overrides site_dir)")
	serveCmd.Flags().Bool("cors-all", false, "allow all CORS origins")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v, _ := cmd.Flags().GetString("site"); v != "" {
		cfg.SiteDir = v
	}
	if v, _ := cmd.Flags().GetBool("cors-all"); v {
		cfg.Server.AllowAllOrigins = true
	}
	if _, err := os.Stat(cfg.SiteDir); err != nil {
		return fmt.Errorf("site directory %s: %w", cfg.SiteDir, err)
	}

	logger := newLogger(cfg)
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	srv := server.New(server.Config{
		Addr:     cfg.Server.Addr,
		AllowAll: cfg.Server.AllowAllOrigins,
		Fragment: cfg.Header.Fragment,
		Search:   searchOptions(cfg),
	}, os.DirFS(cfg.SiteDir), newInstaller(cfg, fetcher, logger), newLoader(cfg, fetcher, logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "pokenav %s serving %s on %s\n", Version, cfg.SiteDir, cfg.Server.Addr)
	return srv.Start()
}
