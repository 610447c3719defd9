package errs

import (
	"errors"
	"fmt"
)

// ValidationError covers rejected input: bad ids, unsupported formats,
// empty extracted text, malformed requests.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError marks a missing record scoped to an owner.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ExtractionError wraps failures while pulling text out of an uploaded file.
type ExtractionError struct {
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func NewExtractionError(format string, err error) *ExtractionError {
	return &ExtractionError{Format: format, Err: err}
}

// EmbeddingError wraps failures from the embedding backend.
type EmbeddingError struct {
	Backend string
	Err     error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed (%s): %v", e.Backend, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func NewEmbeddingError(backend string, err error) *EmbeddingError {
	return &EmbeddingError{Backend: backend, Err: err}
}

// StorageError wraps failures from the document, chunk or blob stores.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsExtraction(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
