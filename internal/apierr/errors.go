// Package apierr holds the error taxonomy shared by every component that talks
// to the reZume backend.
package apierr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks input rejected locally, before any request is sent.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned when the login endpoint rejects the credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when the identity check reports no session.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrSessionExpired is returned for a 401 on any authenticated action.
	ErrSessionExpired = errors.New("session expired")
	// ErrServerDown is returned for 5xx responses.
	ErrServerDown = errors.New("server is unavailable")
	// ErrNetwork is returned when the request never got a response.
	ErrNetwork = errors.New("network error")
	// ErrRequestFailed is returned for any other non-2xx response.
	ErrRequestFailed = errors.New("request failed")
	// ErrMalformedResponse is returned when a 2xx body does not match its schema.
	ErrMalformedResponse = errors.New("malformed response")
)

// ValidationError describes a field rejected before submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Required builds a ValidationError for an empty mandatory field.
func Required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

// RequestError is a non-2xx answer to a specific action.
type RequestError struct {
	Method string
	Path   string
	Status int
	// Detail is the backend's "detail" message when it sent one.
	Detail string
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s: bad status %d", e.Method, e.Path, e.Status)
	if detail := strings.TrimSpace(e.Detail); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return ErrRequestFailed
}

// MalformedResponseError reports a response body that failed schema validation.
type MalformedResponseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("%s from %s", ErrMalformedResponse, e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedResponse}
	}
	return []error{ErrMalformedResponse, e.Err}
}

// Malformed builds a MalformedResponseError without an underlying cause.
func Malformed(path, reason string) error {
	return &MalformedResponseError{Path: path, Reason: reason}
}

// Detail returns the most user-friendly text for err: the backend detail of a
// RequestError when present, otherwise err.Error().
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) && strings.TrimSpace(reqErr.Detail) != "" {
		return reqErr.Detail
	}
	return err.Error()
}

// IsGlobal reports whether err is promoted to global session state instead of
// being handled at the call site.
func IsGlobal(err error) bool {
	return errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrServerDown)
}
