package stream

import "fmt"

// FramingError describes a complete, newline-terminated record that could
// not be parsed. It is reported to the malformed-line hook and never ends
// the stream.
type FramingError struct {
	Line string
	Err  error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("stream: malformed record %q: %v", truncate(e.Line, 80), e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// BackendError carries an error record sent in-band by the backend.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return "stream: backend error: " + e.Message
}

// ReadError wraps a transport failure that cut the stream short.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("stream: read failed: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
