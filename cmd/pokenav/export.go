package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poku-e/pokenav/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the name index with detail links to .csv or .xlsx",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().String("out", "", "output file, .csv or .xlsx (required)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	outPath, _ := cmd.Flags().GetString("out")

	logger := newLogger(cfg)
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	idx := newLoader(cfg, fetcher, logger).Load(context.Background())
	if idx.Len() == 0 {
		return fmt.Errorf("name index %s is empty or unavailable", cfg.Index.Resource)
	}
	if err := export.Write(outPath, idx, cfg.Search.DetailPage); err != nil {
		return err
	}

	fmt.Printf("OK: %d names -> %s\n", idx.Len(), outPath)
	return nil
}
