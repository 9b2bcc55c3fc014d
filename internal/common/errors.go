// Package common defines shared constants and sentinel errors used across
// the Big Data Keeper server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Request-level errors.
	ErrorValidation = errors.New("validation error")
	ErrorBadRequest = errors.New("bad request")

	// Auth errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Dependency errors.
	ErrorStorage     = errors.New("storage failure")
	ErrorUnsupported = errors.New("unsupported operation")
	ErrorInternal    = errors.New("internal error")

	// Token errors (invalid or malformed token, or past its expiry).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Error pairs a sentinel kind with a message that is safe to return to the caller.
//
//	return common.NewError(common.ErrorConflict, "folder not empty")
//
// errors.Is(err, common.ErrorConflict) reports true for such values.
type Error struct {
	Kind    error
	Message string
}

// NewError returns an *Error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Message extracts the caller-facing message of err, falling back to def
// when err carries none.
func Message(err error, def string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return def
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field errors. It matches ErrorValidation.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError returns a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e when it holds at least one field error, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return e.Fields[0].Message
	}
	return "Validation failed"
}

func (e *ValidationError) Unwrap() error {
	return ErrorValidation
}
