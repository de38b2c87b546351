// Package failure classifies the errors the voice bridge and chat proxies
// surface to callers.
package failure

import (
	"errors"
	"fmt"
)

// Kind names a failure class that callers can react to.
type Kind string

const (
	KindUnknown              Kind = "unknown"
	KindPermissionDenied     Kind = "permission_denied"
	KindConfigurationMissing Kind = "configuration_missing"
	KindConnectivity         Kind = "connectivity_failure"
	KindRateLimited          Kind = "rate_limited"
	KindServerError          Kind = "server_error"
	KindMalformedPayload     Kind = "malformed_payload"
)

// Sentinels for errors.Is matching against a Kind.
var (
	ErrPermissionDenied     = &Error{Kind: KindPermissionDenied}
	ErrConfigurationMissing = &Error{Kind: KindConfigurationMissing}
	ErrConnectivity         = &Error{Kind: KindConnectivity}
	ErrRateLimited          = &Error{Kind: KindRateLimited}
	ErrServerError          = &Error{Kind: KindServerError}
	ErrMalformedPayload     = &Error{Kind: KindMalformedPayload}
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind. This lets the
// package sentinels match any wrapped failure of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New wraps err with kind and op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a failure with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Retryable reports whether err is a rate-limit or upstream server failure.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindServerError:
		return true
	default:
		return false
	}
}
