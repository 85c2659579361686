// Package apperror defines the error taxonomy shared by every clinic
// service. Handlers map these onto HTTP statuses; services wrap storage
// errors into one of the five kinds so callers can branch with errors.Is.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrImmutableState = errors.New("immutable state")
	ErrPermission     = errors.New("permission denied")
	ErrNotFound       = errors.New("resource not found")
)

// Error carries a sentinel kind plus a human-readable message and
// optional per-field details.
type Error struct {
	Kind    error             `json:"-"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// HTTPStatus maps the error kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch {
	case errors.Is(e.Kind, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(e.Kind, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(e.Kind, ErrPermission):
		return http.StatusForbidden
	case errors.Is(e.Kind, ErrConflict), errors.Is(e.Kind, ErrImmutableState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Validation reports malformed or missing input. Recoverable by the caller.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Code: "VALIDATION_ERROR", Message: fmt.Sprintf(format, args...)}
}

// ValidationFields reports input errors keyed by field name.
func ValidationFields(message string, details map[string]string) *Error {
	return &Error{Kind: ErrValidation, Code: "VALIDATION_ERROR", Message: message, Details: details}
}

// Conflict reports a violated cross-entity precondition.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrConflict, Code: "CONFLICT", Message: fmt.Sprintf(format, args...)}
}

// Immutable reports a mutation attempted on an entity whose state forbids it.
func Immutable(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrImmutableState, Code: "IMMUTABLE_STATE", Message: fmt.Sprintf(format, args...)}
}

// Permission reports an actor lacking a required permission or role.
func Permission(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrPermission, Code: "FORBIDDEN", Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity.
func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    ErrNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Details: map[string]string{"resource": resource, "id": id},
	}
}

// HTTPStatus returns the status for any error, defaulting to 500.
func HTTPStatus(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.HTTPStatus()
	}
	return http.StatusInternalServerError
}
