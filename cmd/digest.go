package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var digestCmd = &cobra.Command{
	Use:   "digest <daily|weekly>",
	Short: "Generate an activity digest and file it in the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svcs, err := newServices(cfg)
		if err != nil {
			return err
		}

		switch args[0] {
		case "daily":
			result, err := svcs.digest.Daily(ctx)
			if err != nil {
				return err
			}
			fmt.Println(result.Digest)
		case "weekly":
			result, err := svcs.digest.Weekly(ctx)
			if err != nil {
				return err
			}
			fmt.Println(result.Digest)
		default:
			return eris.Errorf("digest: unknown period %q (want daily or weekly)", args[0])
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
}
