package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/Abraxas-365/ollamarelay/adapters/localfile"
)

const helpText = `Commands:
  :clear    reset conversation memory
  :save     append transcript to %s
  :history  show the conversation so far
  :tokens   estimate the tokens the conversation sends
  :help     show this help
  exit      end the session`

// command runs a recognised command. It reports false for anything else,
// which is then treated as chat.
func (c *Controller) command(ctx context.Context, text string) (bool, error) {
	switch strings.ToLower(text) {
	case ":clear":
		c.memory.Clear()
		green.Fprintln(c.out, "✅ Conversation memory cleared.")
		return true, nil
	case ":save":
		return true, c.save(ctx)
	case ":help", ":h":
		fmt.Fprintf(c.out, helpText+"\n", c.opts.TranscriptTarget)
		return true, nil
	case ":history":
		if c.memory.Len() == 0 {
			fmt.Fprintln(c.out, "ℹ️ Conversation is empty.")
		} else {
			fmt.Fprintln(c.out, c.memory.Render())
		}
		return true, nil
	case ":tokens":
		c.tokens()
		return true, nil
	}
	return false, nil
}

func (c *Controller) save(ctx context.Context) error {
	if c.memory.Len() == 0 {
		fmt.Fprintln(c.out, "ℹ️ Nothing to save (conversation is empty).")
		return nil
	}
	if c.opts.Transcripts == nil {
		c.opts.Transcripts = localfile.NewFileStore()
	}

	target := c.opts.TranscriptTarget
	if err := c.memory.Persist(ctx, c.opts.Transcripts, target); err != nil {
		red.Fprintf(c.out, "❌ Failed to save conversation: %v\n", err)
		c.logger.Error().Err(err).Str("target", target).Msg("persist transcript")
		return err
	}
	green.Fprintf(c.out, "💾 Conversation saved to: %s\n", target)
	c.logger.Info().Str("target", target).Int("turns", c.memory.Len()).Msg("transcript saved")
	return nil
}

func (c *Controller) tokens() {
	if c.opts.Counter == nil {
		fmt.Fprintln(c.out, "ℹ️ Token counting is not enabled.")
		return
	}
	n, err := c.opts.Counter.CountMessages(c.requestMessages())
	if err != nil {
		c.logger.Debug().Err(err).Msg("token encoding unavailable, using estimate")
		fmt.Fprintf(c.out, "~%d tokens (rough estimate)\n", n)
		return
	}
	fmt.Fprintf(c.out, "~%d tokens (%s)\n", n, c.opts.Counter.Encoding())
}
