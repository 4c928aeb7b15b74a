package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Abraxas-365/ollamarelay/chathistory"
	"github.com/Abraxas-365/ollamarelay/llm"
)

func newTranscriptCommand(a *app) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "transcript [path|s3://bucket/prefix]",
		Short: "Print conversations saved with :save",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := a.cfg.Chat.TranscriptPath
			if len(args) == 1 {
				target = args[0]
			}

			reader, err := a.transcriptReader(ctx, target)
			if err != nil {
				return err
			}
			rc, err := reader.Open(ctx, target)
			if err != nil {
				return err
			}
			defer rc.Close()

			blocks, err := chathistory.ParseTranscript(rc)
			if err != nil {
				return errors.Wrapf(err, "failed to parse transcript %s", target)
			}
			if last > 0 && len(blocks) > last {
				blocks = blocks[len(blocks)-last:]
			}

			cyan := color.New(color.FgCyan)
			for _, block := range blocks {
				cyan.Printf("── %s (%d turns)\n", block.At.Format("2006-01-02 15:04:05 UTC"), len(block.Messages))
				fmt.Println(llm.MessagesToString(block.Messages))
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 0, "only print the last n conversations")
	return cmd
}
