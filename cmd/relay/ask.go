package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/stream"
	"github.com/Abraxas-365/ollamarelay/tokenizer"
)

func newAskCommand(a *app) *cobra.Command {
	var (
		streaming   bool
		temperature float64
		topP        float64
		maxTokens   int
		seed        int
		stop        []string
	)
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send a single prompt and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prompt := strings.Join(args, " ")
			client := a.newOllama()
			opts := []llm.Option{llm.WithOptions(a.cfg.Ollama.Options)}
			flags := cmd.Flags()
			if flags.Changed("temperature") {
				opts = append(opts, llm.WithTemperature(temperature))
			}
			if flags.Changed("top-p") {
				opts = append(opts, llm.WithTopP(topP))
			}
			if flags.Changed("seed") {
				opts = append(opts, llm.WithSeed(seed))
			}
			opts = append(opts, llm.WithMaxTokens(maxTokens), llm.WithStop(stop))

			counter := tokenizer.NewCounter(client.Model())
			n, err := counter.Count(prompt)
			a.logger.Debug().Err(err).Int("prompt_tokens", n).Str("encoding", counter.Encoding()).Msg("sending prompt")

			cyan := color.New(color.FgCyan)
			if !streaming {
				completion, err := client.Complete(ctx, prompt, opts...)
				if err != nil {
					return err
				}
				cyan.Print("\n🤖 Response: ")
				fmt.Println(completion.Text)
				return nil
			}

			dec, err := client.CompleteStream(ctx, prompt, opts...)
			if err != nil {
				return err
			}
			defer dec.Close()
			cyan.Print("\n🤖 Response: ")
			for ev := range dec.Events() {
				switch ev.Kind {
				case stream.KindText:
					fmt.Print(ev.Text)
				case stream.KindDone:
					fmt.Println()
					a.logger.Debug().Int("chars", ev.TotalChars).Msg("stream done")
				case stream.KindError:
					fmt.Println()
					return ev.Err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&streaming, "stream", false, "print the response as it is generated")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().Float64Var(&topP, "top-p", 0, "nucleus sampling cutoff")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum tokens to generate (0 for the model default)")
	cmd.Flags().IntVar(&seed, "seed", 0, "sampling seed")
	cmd.Flags().StringSliceVar(&stop, "stop", nil, "stop sequence (repeatable)")
	return cmd
}
