package storage

import "errors"

// StorageError represents errors that can occur during storage operations
type StorageError struct {
	Op      string
	Key     string
	Err     error
	Code    string
	Message string
}

// Error implements the error interface
func (e *StorageError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Key == "" {
		return "storage." + e.Op + ": " + msg
	}
	return "storage." + e.Op + " " + e.Key + ": " + msg
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeInvalidArgument  = "InvalidArgument"
	ErrCodeNotFound         = "NotFound"
	ErrCodePermissionDenied = "PermissionDenied"
	ErrCodeUnavailable      = "Unavailable"
	ErrCodeInternal         = "Internal"
)

// NewStorageError creates a new StorageError
func NewStorageError(op, key string, err error, code, message string) *StorageError {
	return &StorageError{
		Op:      op,
		Key:     key,
		Err:     err,
		Code:    code,
		Message: message,
	}
}

// IsStorageError reports whether err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
