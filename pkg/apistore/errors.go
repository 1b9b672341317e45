package apistore

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingType is returned when a fetch names no resolvable type.
	ErrMissingType = errors.New("apistore: type not specified")
	// ErrNoType is returned when a record cannot be created without a type.
	ErrNoType = errors.New("apistore: missing type: cannot create record without a type")
	// ErrUnknownLink is returned when a link or pagination cursor is absent.
	ErrUnknownLink = errors.New("apistore: unknown link")
	// ErrUnknownAction is returned when an action is absent.
	ErrUnknownAction = errors.New("apistore: unknown action")
	// ErrNoSelfLink is returned by reload and delete on records without a
	// self link.
	ErrNoSelfLink = errors.New("apistore: resource has no self link")
	// ErrNoStore is returned by lifecycle calls on records built outside a store.
	ErrNoStore = errors.New("apistore: record is not attached to a store")
	// ErrNoBackend is returned when a store has no Backend configured.
	ErrNoBackend = errors.New("apistore: no backend configured")
)

// Error is the normalized failure of a request: a non-2xx status, an
// undecodable body or a transport failure. When the server sent a JSON
// error body, Payload holds its hydrated form (usually *APIError).
type Error struct {
	Status  int
	Message string
	// Detail is "METHOD url".
	Detail  string
	Payload any
	// Cause is the raw transport error.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("apistore: ")
	if e.Detail != "" {
		b.WriteString(e.Detail)
		b.WriteString(": ")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, "status=%d ", e.Status)
	}
	msg := e.Message
	if msg == "" && e.Status != 0 {
		msg = http.StatusText(e.Status)
	}
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	b.WriteString(msg)
	return strings.TrimSpace(b.String())
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// APIError returns the hydrated server error body, if any.
func (e *Error) APIError() *APIError {
	if e == nil {
		return nil
	}
	ae, _ := e.Payload.(*APIError)
	return ae
}

// IsStatus reports whether err is an *Error carrying status code.
func IsStatus(err error, code int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == code
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}
