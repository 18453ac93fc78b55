package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture [text]",
	Short: "Classify a capture and file it into the vault",
	Long:  "Sends the text through the classifier and files it into the matching vault category, or parks it for review when confidence is low. Reads stdin when no argument is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var text string
		if len(args) == 1 {
			text = args[0]
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return eris.Wrap(err, "capture: read stdin")
			}
			text = string(data)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return eris.New("capture: empty text")
		}

		svcs, err := newServices(cfg)
		if err != nil {
			return err
		}

		result, err := svcs.classifier.ProcessCapture(ctx, text)
		if err != nil {
			return err
		}

		if result.NeedsReview {
			fmt.Printf("Parked for review (confidence %.2f): %s\n", result.Confidence, result.SourceID)
		} else {
			fmt.Printf("Filed %s/%s (confidence %.2f, id %s)\n",
				result.Category, result.Name, result.Confidence, result.SourceID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)
}
