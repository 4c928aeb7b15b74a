package storage

import (
	"context"
	"io"
)

// TranscriptStore is append-only durable storage for transcript blocks.
// Blocks written through it are never modified.
type TranscriptStore interface {
	// Append writes data after everything previously appended to target.
	// How target is interpreted (a file path, an object key prefix) is up
	// to the implementation.
	Append(ctx context.Context, target string, data io.Reader, options ...PutOption) error
}

// TranscriptReader reads back everything appended to a target, in append
// order.
type TranscriptReader interface {
	Open(ctx context.Context, target string) (io.ReadCloser, error)
}

// PutOption allows customizing Append operations
type PutOption func(*PutOptions)

// PutOptions contains configuration for Append operations
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// NewPutOptions applies options over the defaults.
func NewPutOptions(options ...PutOption) *PutOptions {
	opts := &PutOptions{ContentType: "text/plain; charset=utf-8"}
	for _, opt := range options {
		opt(opts)
	}
	return opts
}

// WithContentType sets the content type for stores that record one
func WithContentType(contentType string) PutOption {
	return func(o *PutOptions) {
		o.ContentType = contentType
	}
}

// WithMetadata sets additional metadata for stores that record it
func WithMetadata(metadata map[string]string) PutOption {
	return func(o *PutOptions) {
		o.Metadata = metadata
	}
}
