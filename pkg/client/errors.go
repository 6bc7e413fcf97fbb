package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failure at the external service boundary.
type Kind int

const (
	// KindService is a transport-level failure or a service rejection.
	KindService Kind = iota
	// KindAuth indicates a missing or invalid credential.
	KindAuth
	// KindSynthesis indicates the service answered but produced no image.
	KindSynthesis
	// KindParse indicates a structured response missing required fields.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindService:
		return "service error"
	case KindAuth:
		return "authentication error"
	case KindSynthesis:
		return "synthesis error"
	case KindParse:
		return "parse error"
	default:
		return "unknown error"
	}
}

// Error is a failure from an external analysis or synthesis service. The Kind
// is a structural tag so callers never have to inspect message text.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a tagged service error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err is (or wraps) a service Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

// IsAuth reports whether err indicates a credential problem requiring
// re-authentication.
func IsAuth(err error) bool {
	return IsKind(err, KindAuth)
}
