// Package sse writes logical stream events to an HTTP response as a
// server-sent event feed.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/Abraxas-365/ollamarelay/stream"
)

var (
	// ErrClosed is returned by any write after a done or error event.
	ErrClosed = errors.New("sse: stream already closed")

	// ErrFlushUnsupported is returned when the ResponseWriter cannot flush.
	ErrFlushUnsupported = errors.New("sse: response writer does not support flushing")
)

// Error codes carried in the "error" field of error events.
const (
	CodeUpstream = "ollama_error"
	CodeStream   = "stream_error"
)

// TextPayload is the data of an unnamed text event.
type TextPayload struct {
	Text string `json:"text"`
}

// DonePayload is the data of the "done" event.
type DonePayload struct {
	Model      string `json:"model"`
	TotalChars int    `json:"totalChars"`
}

// ErrorPayload is the data of the "error" event.
type ErrorPayload struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Encoder writes one event stream. It is not safe for concurrent use.
type Encoder struct {
	w         http.ResponseWriter
	flusher   http.Flusher
	model     string
	started   bool
	closed    bool
	errorCode func(error) (code, details string)
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithErrorMapper controls how stream errors become error payloads.
func WithErrorMapper(fn func(error) (code, details string)) Option {
	return func(e *Encoder) {
		e.errorCode = fn
	}
}

// NewEncoder prepares an encoder for w. Nothing is written until the first
// event.
func NewEncoder(w http.ResponseWriter, model string, opts ...Option) (*Encoder, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrFlushUnsupported
	}
	e := &Encoder{
		w:       w,
		flusher: flusher,
		model:   model,
		errorCode: func(err error) (string, string) {
			return CodeStream, err.Error()
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Closed reports whether a terminal event has been written.
func (e *Encoder) Closed() bool {
	return e.closed
}

// Start writes and flushes the event-stream headers. It is called
// implicitly by the first event.
func (e *Encoder) Start() error {
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}
	h := e.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	e.w.WriteHeader(http.StatusOK)
	e.flusher.Flush()
	e.started = true
	return nil
}

// Text writes a data-only event carrying a text fragment.
func (e *Encoder) Text(text string) error {
	return e.write("", TextPayload{Text: text}, false)
}

// Done writes the terminal "done" event and closes the encoder.
func (e *Encoder) Done(totalChars int) error {
	return e.write("done", DonePayload{Model: e.model, TotalChars: totalChars}, true)
}

// Error writes the terminal "error" event and closes the encoder.
func (e *Encoder) Error(code, details string) error {
	return e.write("error", ErrorPayload{Error: code, Details: details}, true)
}

// Encode writes a single logical event.
func (e *Encoder) Encode(ev stream.Event) error {
	switch ev.Kind {
	case stream.KindText:
		return e.Text(ev.Text)
	case stream.KindDone:
		return e.Done(ev.TotalChars)
	case stream.KindError:
		code, details := e.errorCode(ev.Err)
		return e.Error(code, details)
	}
	return fmt.Errorf("sse: unknown event kind %v", ev.Kind)
}

// Relay encodes events until a terminal one is written. If the sequence
// ends without a terminal event, an error event is written so the feed is
// never silently truncated. A write failure (typically a disconnected
// client) stops the relay and is returned.
func (e *Encoder) Relay(events iter.Seq[stream.Event]) error {
	for ev := range events {
		if err := e.Encode(ev); err != nil {
			return err
		}
		if e.closed {
			return nil
		}
	}
	if !e.closed {
		return e.Error(CodeStream, "stream ended without completion")
	}
	return nil
}

func (e *Encoder) write(event string, payload any, terminal bool) error {
	if e.closed {
		return ErrClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: marshal %s payload: %w", event, err)
	}
	if err := e.Start(); err != nil {
		return err
	}
	if terminal {
		e.closed = true
	}
	if event != "" {
		if _, err := fmt.Fprintf(e.w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
