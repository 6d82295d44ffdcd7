package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError with the same code and message, so a
// sentinel still matches after it has been re-wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithCause returns a copy of a sentinel error carrying err as its cause.
func WithCause(sentinel *DomainError, err error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeUnsupportedType     = "UNSUPPORTED_TYPE"
	ErrCodeExtractionFailed    = "EXTRACTION_FAILED"
	ErrCodeTranscriptionFailed = "TRANSCRIPTION_FAILED"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodePersistenceFailed   = "PERSISTENCE_FAILED"
	ErrCodeUpstreamFailed      = "UPSTREAM_FAILED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidFileName      = NewDomainError(ErrCodeValidation, "invalid file name")
	ErrReservedFileName     = NewDomainError(ErrCodeValidation, "file name is reserved")
	ErrInvalidChunkConfig   = NewDomainError(ErrCodeValidation, "chunk overlap must be smaller than chunk size")
	ErrCorpusMisaligned     = NewDomainError(ErrCodeInternalError, "chunks, embeddings and chunk files are misaligned")
)

// Not found errors
var (
	ErrFileNotFound = NewDomainError(ErrCodeNotFound, "file not found")
	ErrToneNotFound = NewDomainError(ErrCodeNotFound, "tone not found")
	ErrStateMissing = NewDomainError(ErrCodeNotFound, "persisted state not found")
)

// Already exists errors
var (
	ErrFileAlreadyEmbedded = NewDomainError(ErrCodeAlreadyExists, "file is already part of the corpus")
)

// Ingestion errors
var (
	ErrUnsupportedFileType  = NewDomainError(ErrCodeUnsupportedType, "unsupported file type")
	ErrExtractionFailed     = NewDomainError(ErrCodeExtractionFailed, "failed to extract text")
	ErrTranscriptionFailed  = NewDomainError(ErrCodeTranscriptionFailed, "transcription failed")
	ErrTranscriptionTimeout = NewDomainError(ErrCodeTimeout, "transcription did not complete in time")
)

// Infrastructure errors
var (
	ErrPersistenceFailed = NewDomainError(ErrCodePersistenceFailed, "failed to persist corpus state")
	ErrUpstreamFailed    = NewDomainError(ErrCodeUpstreamFailed, "upstream service failed")
)
