package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/leonunix/esdoc/internal/backend"
	"github.com/leonunix/esdoc/internal/query"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrConflict         = errors.New("conflict")
	ErrUnprocessable    = errors.New("unprocessable")
	ErrGeneral          = errors.New("general error")
)

// Error is a classified service error. Status carries the engine's HTTP
// status when the error came from the engine, and Cause the original error.
type Error struct {
	Kind    error
	Message string
	ID      string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func badRequest(cause error, format string, args ...any) *Error {
	return &Error{Kind: ErrBadRequest, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest, Cause: cause}
}

func notFound(id string) *Error {
	return &Error{
		Kind:    ErrNotFound,
		Message: fmt.Sprintf("No record found for id '%s'", id),
		ID:      id,
		Status:  http.StatusNotFound,
	}
}

func methodNotAllowed(format string, args ...any) *Error {
	return &Error{Kind: ErrMethodNotAllowed, Message: fmt.Sprintf(format, args...), Status: http.StatusMethodNotAllowed}
}

// normalize classifies err. Errors that are already classified pass through,
// engine HTTP errors are mapped by status with id attached, and anything
// else (transport failures, cancellation) is returned unmodified.
func normalize(err error, id string) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	switch {
	case errors.Is(err, query.ErrDepthExceeded), errors.Is(err, query.ErrInvalidFilter):
		return badRequest(err, "%s", err.Error())
	case errors.Is(err, backend.ErrUnknownMethod):
		return &Error{Kind: ErrMethodNotAllowed, Message: err.Error(), Status: http.StatusMethodNotAllowed, Cause: err}
	}

	var httpErr *backend.HTTPStatusError
	if !errors.As(err, &httpErr) {
		return err
	}

	e := &Error{
		Kind:    kindForStatus(httpErr.StatusCode),
		Message: err.Error(),
		ID:      id,
		Status:  httpErr.StatusCode,
		Cause:   err,
	}
	if httpErr.Reason != "" {
		e.Message = httpErr.Reason
	}
	if httpErr.StatusCode == http.StatusNotFound && id != "" {
		e.Message = fmt.Sprintf("No record found for id '%s'", id)
	}
	return e
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrNotAuthenticated
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusMethodNotAllowed:
		return ErrMethodNotAllowed
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrUnprocessable
	default:
		return ErrGeneral
	}
}
