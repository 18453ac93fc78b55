package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/second-brain/internal/vault"
)

var recentDays int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List vault entries touched in the last N days",
	RunE: func(cmd *cobra.Command, _ []string) error {
		v, err := vault.New(cfg.Vault.Path)
		if err != nil {
			return err
		}

		for _, cat := range vault.ContentCategories() {
			entries, err := v.Recent(cat, recentDays)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				continue
			}
			fmt.Printf("%s:\n", cat)
			for _, e := range entries {
				fmt.Printf("  %s (%s)\n", e.Filename, e.Meta.GetString("last_touched"))
			}
		}
		return nil
	},
}

func init() {
	recentCmd.Flags().IntVar(&recentDays, "days", 7, "lookback window in days")
	rootCmd.AddCommand(recentCmd)
}
