// Package apperr defines the error kinds shared across the gateway so that
// HTTP responders and background task logs can classify a failure without
// string-matching messages.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the purposes of HTTP status mapping and
// logging. It is not a Go error type hierarchy; apperr.Error wraps one.
type Kind int

const (
	Internal Kind = iota
	BadInput
	Unauthorized
	NotFound
	Conflict
	UpstreamUnreachable
	UpstreamTimeout
	PoolFull
)

func (k Kind) String() string {
	switch k {
	case BadInput:
		return "bad_input"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case UpstreamUnreachable:
		return "upstream_unreachable"
	case UpstreamTimeout:
		return "upstream_timeout"
	case PoolFull:
		return "pool_full"
	default:
		return "internal"
	}
}

// Error is a classified application error. Handlers map Kind to an HTTP
// status; background tasks log Kind plus the wrapped cause and move on.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the classified Kind of err, or Internal if err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the status code named in the error handling
// design: BadInput->400, Unauthorized->401, NotFound->404, Conflict->409,
// PoolFull->503, UpstreamTimeout->408, UpstreamUnreachable->500, Internal->500.
func HTTPStatus(k Kind) int {
	switch k {
	case BadInput:
		return 400
	case Unauthorized:
		return 401
	case NotFound:
		return 404
	case Conflict:
		return 409
	case PoolFull:
		return 503
	case UpstreamTimeout:
		return 408
	case UpstreamUnreachable:
		return 500
	default:
		return 500
	}
}

// WriteHTTP writes err as a JSON error body with the status its Kind maps
// to. Unclassified errors are reported as Internal.
func WriteHTTP(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(kind))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   kind.String(),
		"message": err.Error(),
	})
}
