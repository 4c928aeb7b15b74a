package localfile

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Abraxas-365/ollamarelay/storage"
)

// FileStore appends transcript blocks to files on the local filesystem.
// The target passed to Append is a file path.
type FileStore struct {
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func NewFileStore() *FileStore {
	return &FileStore{
		dirPerm:  0o755,
		filePerm: 0o644,
	}
}

// Append opens target in append mode, creating it and any missing parent
// directories, and copies data to the end of it.
func (s *FileStore) Append(ctx context.Context, target string, data io.Reader, _ ...storage.PutOption) error {
	if target == "" {
		return storage.NewStorageError("Append", target, nil, storage.ErrCodeInvalidArgument, "empty target path")
	}
	if err := ctx.Err(); err != nil {
		return storage.NewStorageError("Append", target, err, storage.ErrCodeUnavailable, "context done")
	}

	if dir := filepath.Dir(target); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, s.dirPerm); err != nil {
			return storage.NewStorageError("Append", target, err, codeFor(err), "failed to create directory")
		}
	}

	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, s.filePerm)
	if err != nil {
		return storage.NewStorageError("Append", target, err, codeFor(err), "failed to open file")
	}

	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return storage.NewStorageError("Append", target, err, storage.ErrCodeInternal, "failed to write file")
	}
	if err := f.Close(); err != nil {
		return storage.NewStorageError("Append", target, err, storage.ErrCodeInternal, "failed to close file")
	}
	return nil
}

// Open returns the transcript file at target for reading.
func (s *FileStore) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	if target == "" {
		return nil, storage.NewStorageError("Open", target, nil, storage.ErrCodeInvalidArgument, "empty target path")
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, storage.NewStorageError("Open", target, err, codeFor(err), "failed to open file")
	}
	return f, nil
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return storage.ErrCodePermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return storage.ErrCodeNotFound
	}
	return storage.ErrCodeInternal
}

var (
	_ storage.TranscriptStore  = (*FileStore)(nil)
	_ storage.TranscriptReader = (*FileStore)(nil)
)
