package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fieldnotes/second-brain/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "second-brain",
	Short: "Capture-to-vault knowledge engine",
	Long:  "Files text and voice captures into a categorized markdown vault via Claude classification, with search, digests, and natural-language queries over the result.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
