package stream

import (
	"errors"
	"io"
	"iter"
)

const defaultChunkSize = 4096

// Decoder reads a response body and yields its events one at a time. It is
// a finite, non-restartable sequence: once a terminal event has been
// returned, Next reports false and the body is closed.
type Decoder struct {
	src       io.ReadCloser
	framer    *Framer
	pending   []Event
	chunk     []byte
	done      bool
	closeOnce bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithChunkSize sets the size of each read from the source.
func WithChunkSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.chunk = make([]byte, n)
		}
	}
}

// WithFramer replaces the default framer, e.g. to attach a logger.
func WithFramer(f *Framer) DecoderOption {
	return func(d *Decoder) {
		d.framer = f
	}
}

// NewDecoder wraps src. The decoder owns src and closes it.
func NewDecoder(src io.ReadCloser, opts ...DecoderOption) *Decoder {
	d := &Decoder{src: src}
	for _, opt := range opts {
		opt(d)
	}
	if d.framer == nil {
		d.framer = NewFramer()
	}
	if d.chunk == nil {
		d.chunk = make([]byte, defaultChunkSize)
	}
	return d
}

// Next returns the next event. ok is false once the stream is exhausted.
func (d *Decoder) Next() (ev Event, ok bool) {
	for len(d.pending) == 0 {
		if d.done {
			return Event{}, false
		}
		d.fill()
	}
	ev = d.pending[0]
	d.pending = d.pending[1:]
	if ev.Terminal() {
		d.pending = nil
		d.done = true
		d.Close()
	}
	return ev, true
}

// Events exposes the decoder as an iterator. Breaking out of the loop
// closes the source.
func (d *Decoder) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		defer d.Close()
		for {
			ev, ok := d.Next()
			if !ok {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// TotalChars is the number of characters decoded so far.
func (d *Decoder) TotalChars() int {
	return d.framer.TotalChars()
}

// Malformed is the number of records skipped so far.
func (d *Decoder) Malformed() int {
	return d.framer.Malformed()
}

// Close releases the source. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d.closeOnce {
		return nil
	}
	d.closeOnce = true
	d.done = true
	return d.src.Close()
}

func (d *Decoder) fill() {
	if d.closeOnce {
		// Closed by the consumer before the stream ended.
		d.done = true
		return
	}
	n, err := d.src.Read(d.chunk)
	if n > 0 {
		d.pending = append(d.pending, d.framer.Push(d.chunk[:n])...)
		if d.framer.Finished() {
			return
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		d.pending = append(d.pending, d.framer.Finish()...)
	default:
		d.pending = append(d.pending, Error(&ReadError{Err: err}))
	}
}
