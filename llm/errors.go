package llm

import (
	"errors"
	"fmt"
)

// LLMError represents errors that can occur during LLM operations
type LLMError struct {
	Op      string
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm.%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("llm.%s: %s", e.Op, e.Message)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// UpstreamError is returned when the backend is unreachable or answers with
// a non-success status. StatusCode is zero when no response was received.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("llm.%s: upstream returned %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("llm.%s: upstream returned %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("llm.%s: upstream unreachable: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("llm.%s: upstream failure", e.Op)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Details is the human-readable part used in outward error payloads.
func (e *UpstreamError) Details() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%d %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("status %d", e.StatusCode)
	case e.Err != nil:
		return e.Err.Error()
	}
	return "upstream failure"
}

// IsUpstream reports whether err is, or wraps, an UpstreamError.
func IsUpstream(err error) bool {
	var upErr *UpstreamError
	return errors.As(err, &upErr)
}
