package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// record is the subset of a backend line the framer understands. The
// generate endpoint carries text in "response", the chat endpoint in
// "message.content".
type record struct {
	Response string `json:"response"`
	Message  *struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (r *record) text() string {
	if r.Response != "" {
		return r.Response
	}
	if r.Message != nil {
		return r.Message.Content
	}
	return ""
}

var errNotObject = errors.New("record is not a JSON object")

// MalformedHook observes framing errors.
type MalformedHook func(err *FramingError)

// FramerOption configures a Framer.
type FramerOption func(*Framer)

// WithLogger sets the logger used to report malformed records.
func WithLogger(logger zerolog.Logger) FramerOption {
	return func(f *Framer) {
		f.logger = logger
	}
}

// WithMalformedHook registers a callback for malformed records.
func WithMalformedHook(hook MalformedHook) FramerOption {
	return func(f *Framer) {
		f.onMalformed = hook
	}
}

// Framer splits a chunked byte stream into records and maps them to events.
// The only retained state is the bytes after the last newline plus the
// running character count.
//
// Bytes are buffered undecoded: a newline byte never occurs inside a
// multi-byte UTF-8 sequence, so a code point split across chunks simply
// stays in the buffer with the rest of its line.
type Framer struct {
	buf         []byte
	total       int
	finished    bool
	malformed   int
	logger      zerolog.Logger
	onMalformed MalformedHook
}

// NewFramer creates a Framer.
func NewFramer(opts ...FramerOption) *Framer {
	f := &Framer{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Push consumes one chunk and returns the events completed by it. After a
// terminal event has been produced Push returns nil.
func (f *Framer) Push(chunk []byte) []Event {
	if f.finished {
		return nil
	}
	f.buf = append(f.buf, chunk...)

	var events []Event
	start := 0
	for {
		idx := bytes.IndexByte(f.buf[start:], '\n')
		if idx < 0 {
			break
		}
		line := f.buf[start : start+idx]
		start += idx + 1

		events = f.handleLine(line, events, true)
		if f.finished {
			f.buf = nil
			return events
		}
	}

	// Keep only the unterminated tail.
	rest := len(f.buf) - start
	copy(f.buf, f.buf[start:])
	f.buf = f.buf[:rest]
	return events
}

// Finish is called when the byte source is exhausted. An unterminated
// trailing record is parsed as the last one, then Done is emitted with the
// characters seen so far unless a terminal event was already produced.
// A tail that does not parse is a truncated record, not a framing error:
// it is logged and dropped without touching the malformed count.
func (f *Framer) Finish() []Event {
	if f.finished {
		return nil
	}
	var events []Event
	if len(bytes.TrimSpace(f.buf)) > 0 {
		events = f.handleLine(f.buf, events, false)
	}
	f.buf = nil
	if f.finished {
		return events
	}
	f.finished = true
	return append(events, Done(f.total))
}

// Finished reports whether a terminal event has been produced.
func (f *Framer) Finished() bool {
	return f.finished
}

// TotalChars is the number of characters emitted as text so far.
func (f *Framer) TotalChars() int {
	return f.total
}

// Malformed is the number of records skipped as unparseable.
func (f *Framer) Malformed() int {
	return f.malformed
}

// handleLine maps one record to events. terminated is false only for the
// trailing bytes left when the source ends.
func (f *Framer) handleLine(line []byte, events []Event, terminated bool) []Event {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return events
	}

	rec, err := parseRecord(line)
	if err != nil {
		if terminated {
			f.reportMalformed(line, err)
		} else {
			f.logger.Debug().
				Err(err).
				Int("tail_bytes", len(line)).
				Msg("dropping unterminated trailing data")
		}
		return events
	}

	if rec.Error != "" {
		f.finished = true
		return append(events, Error(&BackendError{Message: rec.Error}))
	}
	if text := rec.text(); text != "" {
		f.total += utf8.RuneCountInString(text)
		events = append(events, Text(text))
	}
	if rec.Done {
		f.finished = true
		events = append(events, Done(f.total))
	}
	return events
}

func parseRecord(line []byte) (record, error) {
	var rec record
	if line[0] != '{' {
		return rec, errNotObject
	}
	err := json.Unmarshal(line, &rec)
	return rec, err
}

func (f *Framer) reportMalformed(line []byte, err error) {
	f.malformed++
	ferr := &FramingError{Line: string(line), Err: err}
	f.logger.Warn().
		Err(err).
		Int("malformed_count", f.malformed).
		Int("line_bytes", len(line)).
		Msg("skipping malformed stream record")
	if f.onMalformed != nil {
		f.onMalformed(ferr)
	}
}
