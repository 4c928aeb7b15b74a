package server

import "fmt"

// ValidationError describes request input the handlers refuse to forward.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("server: invalid %s: %s", e.Field, e.Message)
}

// Public message for a missing or non-string prompt.
const msgPromptRequired = "prompt (string) is required"
