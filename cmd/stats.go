package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldnotes/second-brain/internal/vault"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-category vault record counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		v, err := vault.New(cfg.Vault.Path)
		if err != nil {
			return err
		}

		stats, err := v.Stats()
		if err != nil {
			return err
		}

		total := 0
		for _, cat := range vault.ContentCategories() {
			fmt.Printf("%-10s %d\n", cat, stats[cat])
			total += stats[cat]
		}
		fmt.Printf("%-10s %d\n", "total", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
