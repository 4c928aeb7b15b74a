package session

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/storage"
	"github.com/Abraxas-365/ollamarelay/tokenizer"
)

// DefaultTranscriptTarget is where :save appends when no target is set.
const DefaultTranscriptTarget = "chatlog.txt"

// Options holds the configuration for a Controller
type Options struct {
	Logger           zerolog.Logger
	Output           io.Writer
	Stream           bool
	SystemPrompt     string
	Transcripts      storage.TranscriptStore
	TranscriptTarget string
	Counter          *tokenizer.Counter
	ChatOptions      []llm.Option
	Prompt           string
}

// Option is a function that modifies Options
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Logger:           zerolog.Nop(),
		Output:           os.Stdout,
		TranscriptTarget: DefaultTranscriptTarget,
		Prompt:           "\nYou: ",
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithOutput sets where replies, notices and the prompt are written.
func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		o.Output = w
	}
}

// WithStreaming prints replies fragment by fragment as they arrive.
func WithStreaming(enabled bool) Option {
	return func(o *Options) {
		o.Stream = enabled
	}
}

// WithSystemPrompt sends a system turn ahead of the conversation on every
// request. It is not stored in the conversation.
func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

// WithTranscripts sets the store and target used by :save.
func WithTranscripts(store storage.TranscriptStore, target string) Option {
	return func(o *Options) {
		o.Transcripts = store
		if target != "" {
			o.TranscriptTarget = target
		}
	}
}

func WithTokenCounter(counter *tokenizer.Counter) Option {
	return func(o *Options) {
		o.Counter = counter
	}
}

// WithChatOptions are passed to the backend on every chat turn.
func WithChatOptions(opts ...llm.Option) Option {
	return func(o *Options) {
		o.ChatOptions = append(o.ChatOptions, opts...)
	}
}

// WithPrompt replaces the input prompt printed by Run.
func WithPrompt(prompt string) Option {
	return func(o *Options) {
		o.Prompt = prompt
	}
}
