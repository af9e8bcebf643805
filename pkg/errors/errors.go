package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a download error for retry routing.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindRateLimit Kind = "rate_limit"
	KindServer    Kind = "server_error"
	KindNotFound  Kind = "not_found"
	KindForbidden Kind = "forbidden"
	KindMalformed Kind = "malformed"
	KindUnknown   Kind = "unknown"
)

// Error is a classified download error. Ref carries the source URL or post
// id the failure belongs to, when known.
type Error struct {
	Kind    Kind
	Ref     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Ref, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, ref string, err error) *Error {
	return &Error{Kind: kind, Ref: ref, Err: err}
}

// KindOf returns the classification of err, or KindUnknown when err carries
// no *Error in its chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether an error is transient. Network trouble, rate
// limit signals and server errors are worth another attempt; not-found,
// forbidden and malformed references never resolve themselves.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindRateLimit, KindServer:
		return true
	case KindNotFound, KindForbidden, KindMalformed:
		return false
	default:
		return false
	}
}

// IsTerminal reports whether an error should fail the item without
// consuming further attempts.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindForbidden, KindMalformed:
		return true
	default:
		return false
	}
}

// KindForStatusCode maps an HTTP status code to an error kind. Zero means
// the request never got a response.
func KindForStatusCode(code int) Kind {
	switch {
	case code == 0:
		return KindNetwork
	case code == 404 || code == 410:
		return KindNotFound
	case code == 401 || code == 403:
		return KindForbidden
	case code == 429:
		return KindRateLimit
	case code >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}
