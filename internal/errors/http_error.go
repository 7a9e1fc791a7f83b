package errors

import (
	"fmt"
	"net/http"

	cr "github.com/cockroachdb/errors"
)

// Kinds of failure surfaced to the user. Concrete errors are marked with one of
// these so callers can branch with Is without knowing where the error came from.
var (
	ErrValidation   = cr.New("validation failed")
	ErrAuthRequired = cr.New("authentication required")
	ErrNotFound     = cr.New("not found")
	ErrConflict     = cr.New("conflict")
	ErrBackend      = cr.New("backend error")
	ErrNetwork      = cr.New("network error")
	ErrMissingData  = cr.New("missing data")
	ErrInFlight     = cr.New("request already in flight")
)

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// BackendError is a non-2xx answer from the reservation backend. Message is the
// raw server message when the body carried one.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d", e.Status)
	}
	return e.Message
}

func New(kind error, msg string) error {
	return cr.Mark(cr.New(msg), kind)
}

func Newf(kind error, format string, args ...interface{}) error {
	return cr.Mark(cr.Newf(format, args...), kind)
}

func Mark(err error, kind error) error {
	if err == nil {
		return nil
	}
	return cr.Mark(err, kind)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func Is(err, kind error) bool {
	return cr.Is(err, kind)
}

func As(err error, target interface{}) bool {
	return cr.As(err, target)
}

// Backend builds the marked error for a failed backend response.
func Backend(status int, message string) error {
	var err error = &BackendError{Status: status, Message: message}
	switch status {
	case http.StatusNotFound:
		err = cr.Mark(err, ErrNotFound)
	case http.StatusConflict:
		err = cr.Mark(err, ErrConflict)
	case http.StatusUnauthorized, http.StatusForbidden:
		err = cr.Mark(err, ErrAuthRequired)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		err = cr.Mark(err, ErrValidation)
	}
	return cr.Mark(err, ErrBackend)
}

// UserMessage is the text shown in the error panel. Backend messages are passed
// through untouched; wrapping context is dropped.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BackendError
	if cr.As(err, &be) {
		return be.Error()
	}
	var he *HTTPError
	if cr.As(err, &he) {
		return he.Message
	}
	return cr.UnwrapAll(err).Error()
}

// StatusCode maps an error kind to the HTTP status the gateway answers with.
func StatusCode(err error) int {
	var he *HTTPError
	switch {
	case err == nil:
		return http.StatusOK
	case cr.As(err, &he):
		return he.Code
	case cr.Is(err, ErrAuthRequired):
		return http.StatusUnauthorized
	case cr.Is(err, ErrValidation):
		return http.StatusBadRequest
	case cr.Is(err, ErrNotFound):
		return http.StatusNotFound
	case cr.Is(err, ErrConflict), cr.Is(err, ErrInFlight), cr.Is(err, ErrMissingData):
		return http.StatusConflict
	case cr.Is(err, ErrBackend), cr.Is(err, ErrNetwork):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// KindOf names the kind of err for clients that branch on it.
func KindOf(err error) string {
	var he *HTTPError
	switch {
	case err == nil:
		return ""
	case cr.As(err, &he):
		if he.Code == http.StatusUnauthorized {
			return "auth_required"
		}
		if he.Code < http.StatusInternalServerError {
			return "validation"
		}
		return "internal"
	case cr.Is(err, ErrAuthRequired):
		return "auth_required"
	case cr.Is(err, ErrValidation):
		return "validation"
	case cr.Is(err, ErrNotFound):
		return "not_found"
	case cr.Is(err, ErrConflict):
		return "conflict"
	case cr.Is(err, ErrMissingData):
		return "missing_data"
	case cr.Is(err, ErrInFlight):
		return "in_flight"
	case cr.Is(err, ErrNetwork):
		return "network"
	case cr.Is(err, ErrBackend):
		return "backend"
	}
	return "internal"
}

// Helper for common errors
var (
	ErrBadRequest = func(msg string) *HTTPError { return NewHTTPError(http.StatusBadRequest, msg) }
)
