package chathistory

import (
	"context"

	"github.com/Abraxas-365/ollamarelay/llm"
	"github.com/Abraxas-365/ollamarelay/storage"
)

// Store owns the ordered turn history of one conversation. A Store is not
// safe for concurrent use; each session owns its own instance.
type Store interface {
	// Append adds a turn at the end of the conversation
	Append(msg llm.Message)

	// RollbackLast removes the most recent turn if it is a user turn that
	// has not been answered. Otherwise it changes nothing and returns a
	// *ConversationStateError.
	RollbackLast() error

	// Clear empties the conversation
	Clear()

	// Render returns one "[ROLE] content" line per turn
	Render() string

	// Messages returns a copy of the turns in order
	Messages() []llm.Message

	// Len returns the number of turns
	Len() int

	// Persist appends a transcript block of the current conversation to target
	Persist(ctx context.Context, store storage.TranscriptStore, target string) error
}
