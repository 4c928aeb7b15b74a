package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/Abraxas-365/ollamarelay/chathistory"
	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/stream"
)

// ErrExit is returned by HandleLine when the user ends the session.
var ErrExit = errors.New("session: exit requested")

const (
	banner      = "Ollama Dev Assistant (type :help for commands)"
	maxLineSize = 1 << 20
)

var (
	green  = color.New(color.FgGreen)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// Controller runs one interactive conversation. It owns its memory and
// handles one line at a time; it is not safe for concurrent use.
type Controller struct {
	llm    llm.LLM
	memory chathistory.Store
	out    io.Writer
	logger zerolog.Logger
	opts   *Options
}

func NewController(model llm.LLM, memory chathistory.Store, opts ...Option) *Controller {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if memory == nil {
		memory = chathistory.New()
	}

	return &Controller{
		llm:    model,
		memory: memory,
		out:    options.Output,
		logger: options.Logger,
		opts:   options,
	}
}

// Memory exposes the conversation, mostly for inspection.
func (c *Controller) Memory() chathistory.Store {
	return c.memory
}

// Run reads lines from in until EOF, exit or cancellation of ctx.
// Failed exchanges are reported on the output and do not stop the loop.
func (c *Controller) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, banner)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(c.out, c.opts.Prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("session: reading input: %w", err)
			}
			c.goodbye()
			return nil
		}

		err := c.HandleLine(ctx, scanner.Text())
		switch {
		case errors.Is(err, ErrExit):
			c.goodbye()
			return nil
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			c.logger.Debug().Err(err).Msg("line failed")
		}
	}
}

// HandleLine processes one line of input: a command, a chat turn, or
// exit. Errors from a failed turn or save are printed and also returned;
// the conversation is left as it was before the line.
func (c *Controller) HandleLine(ctx context.Context, line string) error {
	text := strings.TrimSpace(line)
	if text == "" {
		return nil
	}
	if strings.EqualFold(text, "exit") {
		return ErrExit
	}
	if strings.HasPrefix(text, ":") {
		if handled, err := c.command(ctx, text); handled {
			return err
		}
	}
	return c.chat(ctx, text)
}

// chat commits the user and assistant turns together or neither.
func (c *Controller) chat(ctx context.Context, text string) error {
	c.memory.Append(llm.NewUserMessage(text))

	var (
		reply string
		err   error
	)
	if c.opts.Stream {
		reply, err = c.streamReply(ctx)
	} else {
		reply, err = c.reply(ctx)
	}
	if err != nil {
		if rbErr := c.memory.RollbackLast(); rbErr != nil {
			c.logger.Error().Err(rbErr).Msg("rollback after failed turn")
		}
		red.Fprintf(c.out, "❌ Error contacting Ollama: %v\n", err)
		c.logger.Warn().Err(err).Int("turns", c.memory.Len()).Msg("chat turn failed")
		return err
	}

	c.memory.Append(llm.NewAssistantMessage(reply))
	c.logger.Debug().Int("turns", c.memory.Len()).Int("chars", len([]rune(reply))).Msg("chat turn committed")
	return nil
}

func (c *Controller) reply(ctx context.Context) (string, error) {
	completion, err := c.llm.Chat(ctx, c.requestMessages(), c.opts.ChatOptions...)
	if err != nil {
		return "", err
	}
	cyan.Fprint(c.out, "\nAssistant: ")
	fmt.Fprintln(c.out, completion.Text)
	return completion.Text, nil
}

// streamReply prints fragments as they arrive. When the stream ends in an
// error the partial text is discarded and a truncation notice is printed
// after whatever was already shown.
func (c *Controller) streamReply(ctx context.Context) (string, error) {
	dec, err := c.llm.ChatStream(ctx, c.requestMessages(), c.opts.ChatOptions...)
	if err != nil {
		return "", err
	}
	defer dec.Close()

	cyan.Fprint(c.out, "\nAssistant: ")
	var sb strings.Builder
	for ev := range dec.Events() {
		switch ev.Kind {
		case stream.KindText:
			sb.WriteString(ev.Text)
			fmt.Fprint(c.out, ev.Text)
		case stream.KindDone:
			fmt.Fprintln(c.out)
			return sb.String(), nil
		case stream.KindError:
			yellow.Fprintln(c.out, " [response truncated]")
			return "", ev.Err
		}
	}
	return "", errors.New("session: stream ended without completion")
}

func (c *Controller) requestMessages() []llm.Message {
	messages := c.memory.Messages()
	if c.opts.SystemPrompt == "" {
		return messages
	}
	return append([]llm.Message{llm.NewSystemMessage(c.opts.SystemPrompt)}, messages...)
}

func (c *Controller) goodbye() {
	fmt.Fprintln(c.out, "\n👋 Exiting.")
}
