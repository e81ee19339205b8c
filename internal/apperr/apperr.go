// Package apperr classifies storefront failures.
//
// Every failure a view can observe is one of a small set of kinds. Backend
// responses are mapped by HTTP status; local pre-checks (empty cart, quantity
// floor, empty selection) are Validation errors raised before any request.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindUnknown Kind = iota
	// KindNetwork means the request never reached the backend or no response came back.
	KindNetwork
	// KindAuth is a 401/403 or rejected credentials.
	KindAuth
	// KindValidation is a rejected payload or a failed local pre-check.
	KindValidation
	// KindNotFound is an id that no longer exists, usually after a concurrent delete.
	KindNotFound
	// KindServer is any other non-2xx answer.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s error %d: %s", e.Op, e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation is a local pre-check failure; no request was sent.
func Validation(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func NotFound(op, msg string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

func Auth(op, msg string) *Error {
	return &Error{Kind: KindAuth, Op: op, Message: msg}
}

// Network wraps a transport failure.
func Network(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: errors.WithStack(err)}
}

// FromStatus classifies a non-2xx response.
func FromStatus(op string, status int, msg string) *Error {
	kind := KindServer
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		kind = KindValidation
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Kind: kind, Op: op, Status: status, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
