package chathistory

import (
	"bytes"
	"context"

	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/storage"
)

// Memory is the in-process Store.
type Memory struct {
	id       string
	messages []llm.Message
	opts     *Options
}

func New(opts ...Option) *Memory {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Memory{
		id:   options.GenerateID(),
		opts: options,
	}
}

// ID identifies the conversation, e.g. in logs and transcript metadata.
func (m *Memory) ID() string {
	return m.id
}

func (m *Memory) Append(msg llm.Message) {
	m.messages = append(m.messages, msg)
}

func (m *Memory) RollbackLast() error {
	if len(m.messages) == 0 {
		return &ConversationStateError{Op: "RollbackLast", Message: msgEmptyConversation}
	}
	last := len(m.messages) - 1
	if m.messages[last].Role != llm.RoleUser {
		return &ConversationStateError{Op: "RollbackLast", Message: msgNotPendingUser}
	}
	m.messages[last] = llm.Message{}
	m.messages = m.messages[:last]
	return nil
}

func (m *Memory) Clear() {
	clear(m.messages)
	m.messages = m.messages[:0]
}

func (m *Memory) Render() string {
	return llm.MessagesToString(m.messages)
}

func (m *Memory) Messages() []llm.Message {
	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *Memory) Len() int {
	return len(m.messages)
}

// Persist renders a transcript block and appends it to target. The
// in-memory conversation is not modified whether or not this succeeds.
func (m *Memory) Persist(ctx context.Context, store storage.TranscriptStore, target string) error {
	if len(m.messages) == 0 {
		return &ConversationStateError{Op: "Persist", Message: msgNothingToPersist}
	}
	block := FormatBlock(m.opts.Clock(), m.Messages())
	return store.Append(ctx, target, bytes.NewReader(block),
		storage.WithMetadata(map[string]string{"conversation-id": m.id}),
	)
}

var _ Store = (*Memory)(nil)
