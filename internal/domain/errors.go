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

// Is matches two domain errors by code and message so that sentinels
// survive being wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
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

// WithCause returns a copy of a sentinel carrying err as its cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, err)
}

// CodeOf returns the code of the first DomainError in err's chain.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeMissingCredential = "MISSING_CREDENTIAL"
	ErrCodeProviderFailure   = "PROVIDER_FAILURE"
	ErrCodeProviderTimeout   = "PROVIDER_TIMEOUT"
	ErrCodeGenerationFailure = "GENERATION_FAILURE"
	ErrCodeStoreFailure      = "STORE_FAILURE"
	ErrCodePartialFailure    = "PARTIAL_FAILURE"
)

// Validation errors
var (
	ErrMissingRequiredField         = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidSegmentKind           = NewDomainError(ErrCodeValidation, "invalid segment kind")
	ErrInvalidSplitter              = NewDomainError(ErrCodeValidation, "splitter must be paragraph or sentence")
	ErrInvalidSplitConfig           = NewDomainError(ErrCodeValidation, "invalid split configuration")
	ErrNoChunksProduced             = NewDomainError(ErrCodeValidation, "text produced no chunks")
	ErrEmptyContent                 = NewDomainError(ErrCodeValidation, "content cannot be empty")
	ErrEmptyQuery                   = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidThreshold             = NewDomainError(ErrCodeValidation, "similarity threshold must be between 0 and 1")
	ErrInvalidSourceType            = NewDomainError(ErrCodeValidation, "invalid document source type")
	ErrNoSourceText                 = NewDomainError(ErrCodeValidation, "document has no loadable source text")
	ErrInvalidRegenerationJobStatus = NewDomainError(ErrCodeValidation, "invalid regeneration job status")
	ErrInvalidCursor                = NewDomainError(ErrCodeValidation, "invalid pagination cursor")
	ErrInvalidOrganizationName      = NewDomainError(ErrCodeValidation, "invalid organization name")
	ErrInvalidAPIKeyFormat          = NewDomainError(ErrCodeValidation, "invalid API key format (expected akb_<64 hex chars>)")
)

// Not found errors
var (
	ErrOrganizationNotFound = NewDomainError(ErrCodeNotFound, "organization not found")
	ErrAgentNotFound        = NewDomainError(ErrCodeNotFound, "agent not found")
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "knowledge document not found")
	ErrSegmentNotFound      = NewDomainError(ErrCodeNotFound, "knowledge segment not found")
	ErrAPIKeyNotFound       = NewDomainError(ErrCodeNotFound, "api key not found")
	ErrObjectNotFound       = NewDomainError(ErrCodeNotFound, "source object not found")
)

// Already exists errors
var (
	ErrOrganizationAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "organization already exists")
	ErrAPIKeyAlreadyExists       = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked          = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey          = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrMissingAuthorization   = NewDomainError(ErrCodeUnauthorized, "missing authorization header")
	ErrMalformedAuthorization = NewDomainError(ErrCodeUnauthorized, "invalid authorization format")
	ErrAgentAccessDenied      = NewDomainError(ErrCodeUnauthorized, "caller cannot access this agent")
	ErrMissingEmbeddingKey    = NewDomainError(ErrCodeMissingCredential, "agent has no OpenAI API key configured")
)

// Source access errors
var (
	ErrObjectAccessDenied   = NewDomainError(ErrCodeForbidden, "source object is outside the organization's namespace")
	ErrSourceAddressBlocked = NewDomainError(ErrCodeForbidden, "source URL must point to a public http or https address")
)

// Provider and store errors
var (
	ErrProviderFailure   = NewDomainError(ErrCodeProviderFailure, "embedding provider request failed")
	ErrProviderTimeout   = NewDomainError(ErrCodeProviderTimeout, "embedding provider request timed out")
	ErrGenerationFailure = NewDomainError(ErrCodeGenerationFailure, "semantic segmentation failed")
	ErrStoreFailure      = NewDomainError(ErrCodeStoreFailure, "knowledge store operation failed")
	ErrSourceUnavailable = NewDomainError(ErrCodeProviderFailure, "document source could not be loaded")
	ErrAllSegmentsFailed = NewDomainError(ErrCodePartialFailure, "embedding regeneration failed for every segment")
	ErrStorageOperation  = NewDomainError(ErrCodeInternalError, "storage operation failed")
)
