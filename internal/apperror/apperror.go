// Package apperror defines the single error type every workflow returns.
//
// TWO LAYERS OF IDENTITY:
// Each AppError carries a machine-readable Code (e.g. "USERNAME_ALREADY_EXISTS")
// that clients switch on, and it unwraps to a small set of category sentinels
// (ErrValidation, ErrNotFound, ...) that transport code maps to status codes:
//
//	err := apperror.New(apperror.CodeEmailAlreadyExists, "Email already exists")
//	errors.Is(err, apperror.ErrConflict) → true
//	apperror.CodeOf(err)                 → "EMAIL_ALREADY_EXISTS"
//
// Field-level problems travel in Fields so a client can highlight the exact
// form input that was rejected.
package apperror

import (
	"errors"
	"fmt"
)

// Category sentinels. Compare with errors.Is, never with ==.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

// Code is the machine-readable error code sent to API clients.
type Code string

const (
	CodeSessionExpired         Code = "SESSION_EXPIRED"
	CodeInvalidInput           Code = "INVALID_INPUT"
	CodeInvalidEmail           Code = "INVALID_EMAIL"
	CodeInvalidUsername        Code = "INVALID_USERNAME"
	CodeInvalidPassword        Code = "INVALID_PASSWORD"
	CodeInvalidAvatar          Code = "INVALID_AVATAR"
	CodeEmailAlreadyExists     Code = "EMAIL_ALREADY_EXISTS"
	CodeUsernameAlreadyExists  Code = "USERNAME_ALREADY_EXISTS"
	CodeInvalidCredentials     Code = "INVALID_CREDENTIALS"
	CodeUserNotFound           Code = "USER_NOT_FOUND"
	CodeInvalidID              Code = "INVALID_ID"
	CodeInvalidCodespaceInput  Code = "INVALID_CODESPACE_INPUT"
	CodeCodespaceAlreadyExists Code = "CODESPACE_ALREADY_EXISTS"
	CodeCodespaceNotFound      Code = "CODESPACE_NOT_FOUND"
	CodeCodespacesNotFound     Code = "CODESPACES_NOT_FOUND"
	CodeConflict               Code = "CONFLICT"
	CodeForbidden              Code = "FORBIDDEN"
	CodeSomethingWentWrong     Code = "SOMETHING_WENT_WRONG"
)

// categories maps every code to the sentinel it unwraps to.
var categories = map[Code]error{
	CodeSessionExpired:         ErrUnauthorized,
	CodeInvalidInput:           ErrValidation,
	CodeInvalidEmail:           ErrValidation,
	CodeInvalidUsername:        ErrValidation,
	CodeInvalidPassword:        ErrValidation,
	CodeInvalidAvatar:          ErrValidation,
	CodeEmailAlreadyExists:     ErrConflict,
	CodeUsernameAlreadyExists:  ErrConflict,
	CodeInvalidCredentials:     ErrUnauthorized,
	CodeUserNotFound:           ErrNotFound,
	CodeInvalidID:              ErrValidation,
	CodeInvalidCodespaceInput:  ErrValidation,
	CodeCodespaceAlreadyExists: ErrConflict,
	CodeCodespaceNotFound:      ErrNotFound,
	CodeCodespacesNotFound:     ErrNotFound,
	CodeConflict:               ErrConflict,
	CodeForbidden:              ErrForbidden,
	CodeSomethingWentWrong:     ErrInternal,
}

// FieldError flags one input field for client-side display.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is the typed error returned by repositories and services.
type AppError struct {
	Err     error        // category sentinel
	Code    Code         // machine-readable code (may be empty for repository errors)
	Message string       // human-readable message
	Fields  []FieldError // optional per-field details
	cause   error        // underlying error for logs, never shown to clients
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the category sentinel and, if present, the underlying cause,
// so errors.Is works for either.
func (e *AppError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Err, e.cause}
	}
	return []error{e.Err}
}

// Field returns the first flagged field name, or "" if none.
func (e *AppError) Field() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0].Field
}

// New builds an AppError for the given code. Unknown codes fall back to ErrInternal.
func New(code Code, message string, fields ...FieldError) *AppError {
	category, ok := categories[code]
	if !ok {
		category = ErrInternal
	}
	return &AppError{
		Err:     category,
		Code:    code,
		Message: message,
		Fields:  fields,
	}
}

// WithField is New with a single field entry carrying the same message.
func WithField(code Code, field, message string) *AppError {
	return New(code, message, FieldError{Field: field, Message: message})
}

// Internal wraps an unexpected failure as SOMETHING_WENT_WRONG, keeping the cause
// reachable through errors.Is/As for logging.
func Internal(cause error) *AppError {
	e := New(CodeSomethingWentWrong, "Something went wrong")
	e.cause = cause
	return e
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// NotFound is used by repositories when a row does not exist.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// Conflict is used by repositories when a UNIQUE constraint rejects a write.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Code:    CodeConflict,
		Message: fmt.Sprintf("%s conflict on %s", resource, key),
	}
}

// Forbidden reports that the caller does not own the target resource.
func Forbidden(message string) *AppError {
	return New(CodeForbidden, message)
}
