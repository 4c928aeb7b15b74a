package inmemory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/Abraxas-365/ollamarelay/storage"
)

// TranscriptStore keeps appended transcripts in memory, keyed by target.
type TranscriptStore struct {
	data map[string]*bytes.Buffer
	mu   sync.RWMutex

	// FailWith, when set, makes every Append fail with this error.
	FailWith error
}

func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		data: make(map[string]*bytes.Buffer),
	}
}

func (s *TranscriptStore) Append(ctx context.Context, target string, data io.Reader, _ ...storage.PutOption) error {
	if s.FailWith != nil {
		return storage.NewStorageError("Append", target, s.FailWith, storage.ErrCodeUnavailable, "append rejected")
	}
	if target == "" {
		return storage.NewStorageError("Append", target, errors.New("empty target"), storage.ErrCodeInvalidArgument, "invalid target")
	}

	// Read first so a failing reader leaves the stored content untouched.
	b, err := io.ReadAll(data)
	if err != nil {
		return storage.NewStorageError("Append", target, err, storage.ErrCodeInternal, "failed to read data")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf, exists := s.data[target]
	if !exists {
		buf = &bytes.Buffer{}
		s.data[target] = buf
	}
	buf.Write(b)
	return nil
}

// Contents returns everything appended to target so far.
func (s *TranscriptStore) Contents(target string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, exists := s.data[target]
	if !exists {
		return ""
	}
	return buf.String()
}

// Open returns a snapshot of everything appended to target.
func (s *TranscriptStore) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, exists := s.data[target]
	if !exists {
		return nil, storage.NewStorageError("Open", target, nil, storage.ErrCodeNotFound, "transcript not found")
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(buf.Bytes()))), nil
}

var (
	_ storage.TranscriptStore  = (*TranscriptStore)(nil)
	_ storage.TranscriptReader = (*TranscriptStore)(nil)
)
