package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Abraxas-365/ollamarelay/chathistory"
	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/session"
	"github.com/Abraxas-365/ollamarelay/tokenizer"
)

func newChatCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			target := a.cfg.Chat.TranscriptPath
			store, err := a.transcriptStore(ctx, target)
			if err != nil {
				return err
			}

			memory := chathistory.New()
			logger := a.logger.With().Str("session", memory.ID()).Logger()
			controller := session.NewController(a.newOllama(), memory,
				session.WithLogger(logger),
				session.WithOutput(os.Stdout),
				session.WithStreaming(a.cfg.Chat.Stream),
				session.WithSystemPrompt(a.cfg.Chat.SystemPrompt),
				session.WithTranscripts(store, target),
				session.WithTokenCounter(tokenizer.NewCounter(a.cfg.Ollama.Model)),
				session.WithChatOptions(llm.WithOptions(a.cfg.Ollama.Options)),
			)
			return controller.Run(ctx, os.Stdin)
		},
	}
	cmd.Flags().Bool("stream", false, "print replies as they are generated")
	cmd.Flags().String("transcript", "chatlog.txt", "transcript file or s3://bucket/prefix used by :save")
	cmd.Flags().String("system", "", "system prompt sent with every request")
	bindFlags(a.v, cmd.Flags(), map[string]string{
		"chat.stream":          "stream",
		"chat.transcript_path": "transcript",
		"chat.system_prompt":   "system",
	})
	return cmd
}
