// ABOUTME: Uniform error shape for every backend request outcome
// ABOUTME: Classifies failures as network, timeout, HTTP status, or parse errors

package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a request failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindTimeout
	KindHTTPStatus
	KindParse
)

// String returns the string representation of a Kind
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindParse:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Sentinel errors shared across the console.
var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrCacheClosed      = errors.New("query cache closed")
)

// Error is the normalized form of every failed request.
type Error struct {
	Kind    Kind
	Status  int // set only for KindHTTPStatus
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed if simply retried.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindHTTPStatus:
		return e.Status >= 500
	default:
		return false
	}
}

// IsAuthFailure reports whether the backend rejected the credential.
func (e *Error) IsAuthFailure() bool {
	return e.Kind == KindHTTPStatus &&
		(e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// Network builds a connectivity error.
func Network(message string, err error) *Error {
	return &Error{Kind: KindNetwork, Message: message, Err: err}
}

// Timeout builds a timeout error.
func Timeout(message string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: message, Err: err}
}

// HTTPStatus builds an error for a non-2xx response.
func HTTPStatus(status int, message string) *Error {
	return &Error{Kind: KindHTTPStatus, Status: status, Message: message}
}

// Parse builds an error for a malformed response body.
func Parse(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

// From returns err as an *Error, wrapping foreign errors as network errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Network(err.Error(), err)
}

// IsTransient reports whether err is an *Error worth retrying.
func IsTransient(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return false
}

// IsAuthFailure reports whether err is a 401/403 response.
func IsAuthFailure(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.IsAuthFailure()
	}
	return false
}
