package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/poku-e/pokenav/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Print the names the search box would show for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Bool("urls", false, "print detail page links instead of names")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	urls, _ := cmd.Flags().GetBool("urls")

	logger := newLogger(cfg)
	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	idx := newLoader(cfg, fetcher, logger).Load(context.Background())
	for _, name := range idx.Match(strings.Join(args, " "), cfg.Search.Limit) {
		if urls {
			fmt.Println(search.DetailURL(cfg.Search.DetailPage, name))
			continue
		}
		fmt.Println(name)
	}
	return nil
}
