// Package stream turns the newline-delimited JSON body of a streaming
// inference response into an ordered sequence of logical events.
//
// A Framer is fed raw chunks exactly as the transport delivers them; chunk
// boundaries may fall anywhere, including inside a record or a multi-byte
// UTF-8 sequence. For a fixed byte sequence the emitted events do not
// depend on how it was split. A Decoder pulls chunks from an io.Reader and
// exposes the events as a lazy sequence that can be consumed once.
package stream
