// Package fault defines the closed error taxonomy shared by the cache, sync
// and permission layers. Every failure carries a Kind so callers (and the API
// tier) can decide between retry, refresh, login and permanent-error handling
// without string matching.
package fault

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindNotFound means the remote entity does not exist.
	KindNotFound Kind = iota
	// KindUnauthorized means the permission table forbids the action.
	KindUnauthorized
	// KindNetwork means the remote call failed or timed out (transient).
	KindNetwork
	// KindSync means an optimistic mutation failed and was rolled back; the
	// wrapped cause preserves the remote failure.
	KindSync
	// KindValidation means malformed input was rejected before any mutation.
	KindValidation
	// KindCache means an internal cache inconsistency (rare, non-fatal).
	KindCache
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindNetwork:
		return "network"
	case KindSync:
		return "sync"
	case KindValidation:
		return "validation"
	case KindCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Error is the single error type the core returns. Op names the operation
// that failed, Msg is a human-readable reason, Err is the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, &Error{Kind: KindNotFound}) works
// across wrapping layers.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the consuming UI should offer a retry. Only
// transient remote failures qualify; permission and validation failures are
// permanent until the input changes.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindSync:
		return true
	default:
		return false
	}
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind from any error in the chain; ok is false when the
// error did not originate in this taxonomy.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
