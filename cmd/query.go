package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var querySearchTerms []string

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a natural-language question about the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svcs, err := newServices(cfg)
		if err != nil {
			return err
		}

		result, err := svcs.query.SearchAndAnswer(ctx, args[0], querySearchTerms)
		if err != nil {
			return err
		}

		fmt.Println(result.Answer)
		return nil
	},
}

func init() {
	queryCmd.Flags().StringSliceVar(&querySearchTerms, "search", nil, "narrow context to entries matching these terms")
	rootCmd.AddCommand(queryCmd)
}
