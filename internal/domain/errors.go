package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrProviderTransient marks a provider failure worth retrying (429, 5xx, transport).
	ErrProviderTransient = errors.New("transient provider error")
	// ErrChatProviderError signals a chat completion provider failure.
	ErrChatProviderError = errors.New("chat provider error")
	// ErrReadOnly signals a write attempted under restricted credentials.
	ErrReadOnly = errors.New("store is read-only")
)

// ErrorKind is the closed set of machine-readable failure codes returned to callers.
type ErrorKind string

// Input errors (4xx).
const (
	KindInvalidRequest            ErrorKind = "INVALID_REQUEST"
	KindMessagesRequired          ErrorKind = "MESSAGES_REQUIRED"
	KindTopicPathRequired         ErrorKind = "TOPIC_PATH_REQUIRED"
	KindTopicPathEmpty            ErrorKind = "TOPIC_PATH_EMPTY"
	KindTopicPathInvalidFormat    ErrorKind = "TOPIC_PATH_INVALID_FORMAT"
	KindTopicPathInvalidStructure ErrorKind = "TOPIC_PATH_INVALID_STRUCTURE"
	KindTopicPathNonCanonical     ErrorKind = "TOPIC_PATH_NON_CANONICAL"
	KindTopicPathUnknown          ErrorKind = "TOPIC_PATH_UNKNOWN"
)

// Upstream and invariant errors (5xx).
const (
	KindDatabaseError        ErrorKind = "DATABASE_ERROR"
	KindEmbeddingUnavailable ErrorKind = "EMBEDDING_UNAVAILABLE"
	KindSearchBackendError   ErrorKind = "SEARCH_BACKEND_ERROR"
	KindChatUnavailable      ErrorKind = "CHAT_UNAVAILABLE"
	KindTopicLeakageDetected ErrorKind = "TOPIC_LEAKAGE_DETECTED"
	KindInternal             ErrorKind = "INTERNAL_ERROR"
)

// HTTPStatus maps the kind to its HTTP status code.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidRequest, KindMessagesRequired,
		KindTopicPathRequired, KindTopicPathEmpty, KindTopicPathInvalidFormat,
		KindTopicPathInvalidStructure, KindTopicPathNonCanonical, KindTopicPathUnknown:
		return http.StatusBadRequest
	case KindEmbeddingUnavailable, KindSearchBackendError, KindChatUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsInputError reports whether the kind is caller-correctable.
func (k ErrorKind) IsInputError() bool {
	return k.HTTPStatus() < http.StatusInternalServerError
}

// SearchError is the typed failure of a search or chat pipeline.
type SearchError struct {
	Kind    ErrorKind
	Message string
	// IncidentID is set only for TOPIC_LEAKAGE_DETECTED.
	IncidentID string
	Err        error
}

// NewSearchError creates a typed pipeline error.
func NewSearchError(kind ErrorKind, msg string, err error) *SearchError {
	return &SearchError{Kind: kind, Message: msg, Err: err}
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SearchError) Unwrap() error { return e.Err }

// AsSearchError extracts a *SearchError from the chain.
func AsSearchError(err error) (*SearchError, bool) {
	var se *SearchError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
