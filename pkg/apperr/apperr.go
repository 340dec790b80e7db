// Package apperr provides the application error framework used across the
// roster engine, CLI and HTTP server.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of an error.
type Code string

const (
	CodeUnknown       Code = "UNKNOWN"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeTimeout       Code = "TIMEOUT"

	// Roster engine.
	CodeConstraintViolation Code = "CONSTRAINT_VIOLATION"
	CodeNoFeasibleSolution  Code = "NO_FEASIBLE_SOLUTION"
	CodeInvalidQuarterStart Code = "INVALID_QUARTER_START"
	CodeSolverCancelled     Code = "SOLVER_CANCELLED"

	// Persistence.
	CodeDatabaseError  Code = "DATABASE_ERROR"
	CodeValidationFail Code = "VALIDATION_FAILED"
)

// Error is the application's single error type. It carries a machine-
// readable code, an HTTP status for the serve subcommand, and an optional
// wrapped cause.
type Error struct {
	Code       Code                   `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// New builds an Error with its HTTP status derived from code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: codeToHTTPStatus(code)}
}

// Wrap builds an Error around an existing error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: codeToHTTPStatus(code), Cause: err}
}

func codeToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput, CodeValidationFail, CodeInvalidQuarterStart:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeNoFeasibleSolution, CodeConstraintViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the code from err, or CodeUnknown if err isn't an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// GetHTTPStatus extracts the HTTP status from err.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

var (
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrInvalidInput       = New(CodeInvalidInput, "invalid input")
	ErrInternal           = New(CodeInternal, "internal error")
	ErrTimeout            = New(CodeTimeout, "operation timed out")
	ErrNoFeasibleSolution = New(CodeNoFeasibleSolution, "no feasible roster exists under the given constraints")
)

// InvalidInput builds an invalid-field error.
func InvalidInput(field, reason string) *Error {
	return New(CodeInvalidInput, fmt.Sprintf("field %q invalid: %s", field, reason))
}

// NotFound builds a resource-not-found error.
func NotFound(resource, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s %q not found", resource, id))
}

// ConstraintViolation builds an error describing a broken hard constraint.
func ConstraintViolation(constraint, details string) *Error {
	return New(CodeConstraintViolation, fmt.Sprintf("constraint %q violated: %s", constraint, details))
}

// NoFeasibleSolution builds a no-solution error carrying the solver's
// diagnosis of why.
func NoFeasibleSolution(reason string) *Error {
	return New(CodeNoFeasibleSolution, reason)
}

// ValidationErrors collects multiple field-level validation failures.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s - %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

func (ve *ValidationErrors) Add(field, message string) {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message})
}

func (ve *ValidationErrors) HasErrors() bool { return len(ve.Errors) > 0 }

func (ve *ValidationErrors) ToAppError() *Error {
	err := New(CodeValidationFail, "validation failed")
	err.Fields = make(map[string]interface{})
	for _, e := range ve.Errors {
		err.Fields[e.Field] = e.Message
	}
	return err
}
