package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeDuplicateEntry      = "DUPLICATE_ENTRY"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidCards        = "INVALID_CARDS"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeDatabase            = "DATABASE_ERROR"
	CodeExternalService     = "EXTERNAL_SERVICE_ERROR"
	CodeUnknown             = "UNKNOWN_ERROR"
)

// Kinds of EXTERNAL_SERVICE_ERROR.
const (
	KindAuthentication = "authentication"
	KindRateLimit      = "rate_limit"
	KindInvalidModel   = "invalid_model"
	KindContextLength  = "context_length"
	KindUnavailable    = "unavailable"
)

type Error struct {
	Status  int
	Code    string
	Kind    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" && e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// PublicMessage is the text safe to return to a client. Server-side
// failures never leak their wrapped cause.
func (e *Error) PublicMessage() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status >= 500 {
		return http.StatusText(e.Status)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Unauthorized(msg string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Status: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func Duplicate(msg string) *Error {
	return &Error{Status: http.StatusConflict, Code: CodeDuplicateEntry, Message: msg}
}

func Validation(msg string, details map[string]any) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg, Details: details}
}

func InvalidCards(ids []string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidCards,
		Message: "some cards do not belong to this generation",
		Details: map[string]any{"invalid_ids": ids},
	}
}

func RateLimited(retryAfterSeconds int) *Error {
	return &Error{
		Status:  http.StatusTooManyRequests,
		Code:    CodeRateLimitExceeded,
		Message: "rate limit exceeded, try again later",
		Details: map[string]any{"retry_after_seconds": retryAfterSeconds},
	}
}

func Database(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeDatabase, Err: err}
}

func External(kind string, err error) *Error {
	return &Error{Status: http.StatusBadGateway, Code: CodeExternalService, Kind: kind, Err: err}
}

func Unknown(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: CodeUnknown, Err: err}
}

// From returns err as an *Error, wrapping anything foreign as UNKNOWN_ERROR.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Unknown(err)
}

// Is reports whether err carries the given taxonomy code.
func Is(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
