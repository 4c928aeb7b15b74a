package llm

import (
	"context"

	"github.com/Abraxas-365/ollamarelay/stream"
)

// LLM represents a large language model backend
type LLM interface {
	// Chat generates a reply using the full conversation as context
	Chat(ctx context.Context, messages []Message, opts ...Option) (*Completion, error)

	// ChatStream streams the reply to a conversation
	ChatStream(ctx context.Context, messages []Message, opts ...Option) (*stream.Decoder, error)

	// Complete generates a completion for a single prompt
	Complete(ctx context.Context, prompt string, opts ...Option) (*Completion, error)

	// CompleteStream streams the completion for a single prompt
	CompleteStream(ctx context.Context, prompt string, opts ...Option) (*stream.Decoder, error)
}

// ModelLister is implemented by backends that can report installed models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
