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

// Is matches another DomainError with the same code and message, so sentinel
// values keep working after being wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
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

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeEmbeddingFailure  = "EMBEDDING_FAILURE"
	ErrCodeGenerationFailure = "GENERATION_FAILURE"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeIngestionFailure  = "INGESTION_FAILURE"
)

// Pipeline stages named in failure messages.
const (
	StageEmbedding  = "embedding"
	StageRetrieval  = "retrieval"
	StageGeneration = "generation"
	StageIngestion  = "ingestion"
)

// Validation errors
var (
	ErrMissingRequiredField      = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidIngestionJobStatus = NewDomainError(ErrCodeValidation, "invalid ingestion job status")
	ErrEmptyQuestion             = NewDomainError(ErrCodeValidation, "question cannot be empty")
)

// Not found errors
var (
	ErrIngestionJobNotFound = NewDomainError(ErrCodeNotFound, "ingestion job not found")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Dimension errors
var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrEmptyVector       = errors.New("embedding provider returned an empty vector")
)

// NewEmbeddingFailure reports that the embedding provider failed during stage.
func NewEmbeddingFailure(stage string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingFailure, stage+": embedding provider failed", cause)
}

// NewDimensionMismatch reports a vector whose length differs from the index dimension.
func NewDimensionMismatch(stage string, expected, got int) *DomainError {
	return NewEmbeddingFailure(stage, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, expected, got))
}

// NewGenerationFailure reports that the generation provider failed.
func NewGenerationFailure(cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGenerationFailure, StageGeneration+": generation provider failed", cause)
}

// NewConfigurationError reports an invalid tuning parameter.
func NewConfigurationError(message string) *DomainError {
	return NewDomainError(ErrCodeConfiguration, message)
}

// NewIngestionFailure reports that a single source could not be turned into a document.
func NewIngestionFailure(sourceID string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeIngestionFailure, fmt.Sprintf("%s: source %q", StageIngestion, sourceID), cause)
}

// ErrorCode returns the code of the outermost DomainError in err's chain, or
// an empty string if there is none.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsEmbeddingFailure(err error) bool {
	return ErrorCode(err) == ErrCodeEmbeddingFailure
}

func IsGenerationFailure(err error) bool {
	return ErrorCode(err) == ErrCodeGenerationFailure
}

func IsConfigurationError(err error) bool {
	return ErrorCode(err) == ErrCodeConfiguration
}

func IsIngestionFailure(err error) bool {
	return ErrorCode(err) == ErrCodeIngestionFailure
}
