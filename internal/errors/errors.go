package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error. The set is closed; callers branch on Kind, never
// on message text.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindValidation
	KindBadRequest
	KindNotFound
	KindConflict
	KindOverloaded
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindOverloaded:
		return "overloaded"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindOverloaded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error codes sent in ErrorResponse.Code.
const (
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeMultipartRequired   = "MULTIPART_REQUIRED"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeUserAlreadyExists   = "USER_ALREADY_EXISTS"
	CodeModelOverloaded     = "MODEL_OVERLOADED"
	CodeArtifactWriteFailed = "ARTIFACT_WRITE_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

var codeKinds = map[string]Kind{
	CodeUnauthorized:        KindUnauthorized,
	CodeInvalidCredentials:  KindUnauthorized,
	CodeValidation:          KindValidation,
	CodeInvalidRequest:      KindBadRequest,
	CodeMultipartRequired:   KindBadRequest,
	CodeUserNotFound:        KindNotFound,
	CodeUserAlreadyExists:   KindConflict,
	CodeModelOverloaded:     KindOverloaded,
	CodeArtifactWriteFailed: KindInternal,
	CodeInternal:            KindInternal,
}

var (
	// ErrUnauthorized is returned when the bearer token is missing or invalid.
	ErrUnauthorized = New(KindUnauthorized, CodeUnauthorized, "unauthorized")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = New(KindUnauthorized, CodeInvalidCredentials, "invalid email or password")
	// ErrUserAlreadyExists is returned when signing up with a taken email.
	ErrUserAlreadyExists = New(KindConflict, CodeUserAlreadyExists, "user already exists")
	// ErrUserNotFound is returned when a token outlives its user.
	ErrUserNotFound = New(KindNotFound, CodeUserNotFound, "user not found")
	// ErrModelOverloaded is the simulated backpressure rejection.
	ErrModelOverloaded = New(KindOverloaded, CodeModelOverloaded, "model overloaded, please retry")
	// ErrMultipartRequired is returned when the generation body is not multipart.
	ErrMultipartRequired = New(KindBadRequest, CodeMultipartRequired, "multipart form-data required")
	// ErrInvalidRequest is returned when a body cannot be decoded.
	ErrInvalidRequest = New(KindBadRequest, CodeInvalidRequest, "invalid request body")
	// ErrArtifactWrite is returned when an uploaded image cannot be stored.
	ErrArtifactWrite = New(KindInternal, CodeArtifactWriteFailed, "failed to process uploaded image")
	// ErrInternal is the catch-all for unexpected failures.
	ErrInternal = New(KindInternal, CodeInternal, "internal server error")
)

// FieldError describes one failing field of a validation error.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
}

// New creates a new application error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// NewValidation creates a validation error carrying per-field detail.
func NewValidation(fields ...FieldError) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: "invalid payload",
		Fields:  fields,
	}
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Fields)
}

// Is matches errors with the same kind and code, so wrapped sentinels and
// errors decoded from a response compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// KindOf returns the kind of err, KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsOverloaded reports whether err is a backpressure rejection.
func IsOverloaded(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == KindOverloaded
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string       `json:"error"`
	Code   string       `json:"code"`
	Fields []FieldError `json:"fields,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     []FieldError
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything that is not an
// *Error becomes an opaque internal error.
func MapErrorToHTTP(err error) *HTTPError {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal
	}
	httpErr := NewHTTPError(appErr.Kind.Status(), appErr.Message, appErr.Code)
	httpErr.Fields = appErr.Fields
	return httpErr
}

// FromResponse rebuilds an *Error from a decoded error body. The kind comes
// from the code when known, otherwise from the status.
func FromResponse(status int, resp ErrorResponse) *Error {
	kind, ok := codeKinds[resp.Code]
	if !ok {
		kind = kindFromStatus(status)
	}
	msg := resp.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: kind, Code: resp.Code, Message: msg, Fields: resp.Fields}
}

func kindFromStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return KindBadRequest
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusTooManyRequests:
		return KindOverloaded
	default:
		return KindInternal
	}
}
