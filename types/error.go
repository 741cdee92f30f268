package types

import "fmt"

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Retrieval error codes
const (
	ErrEmbeddingProvider ErrorCode = "EMBEDDING_PROVIDER_FAILURE"
	ErrDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	ErrInvalidDocument   ErrorCode = "INVALID_DOCUMENT"
	ErrDocumentNotFound  ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrNoDocumentsLoaded ErrorCode = "NO_DOCUMENTS_LOADED"
	ErrModelMismatch     ErrorCode = "EMBEDDING_MODEL_MISMATCH"
)

// Routing and transport error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrHandlerUnavailable ErrorCode = "HANDLER_UNAVAILABLE"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrPersistence        ErrorCode = "PERSISTENCE_FAILURE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	// DocumentID identifies the rejected document for structural
	// ingestion failures (dimension mismatch, invalid document).
	DocumentID string `json:"document_id,omitempty"`
	Cause      error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithDocumentID attaches the rejected document identity.
func (e *Error) WithDocumentID(id string) *Error {
	e.DocumentID = id
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
