package chathistory

import "fmt"

// ConversationStateError is returned when an operation's precondition on
// the conversation does not hold. The conversation is left unchanged.
type ConversationStateError struct {
	Op      string
	Message string
}

func (e *ConversationStateError) Error() string {
	return fmt.Sprintf("chathistory.%s: %s", e.Op, e.Message)
}

// Error messages
const (
	msgEmptyConversation = "conversation is empty"
	msgNotPendingUser    = "last turn is not an unanswered user turn"
	msgNothingToPersist  = "nothing to persist"
)
