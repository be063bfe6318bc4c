package fingerprinting

import (
	"errors"
	"fmt"
)

// Kind classifies why a fingerprint could not be produced.
type Kind string

const (
	KindEngineUnavailable       Kind = "engine_unavailable"
	KindContextAllocationFailed Kind = "context_allocation_failed"
	KindDecodeFailed            Kind = "decode_failed"
	KindRetrievalFailed         Kind = "retrieval_failed"
)

// Error is returned by every failed fingerprint call. Callers that only care
// about success can ignore the kind; errors.Is works against the Err* values.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fingerprint %s: %s", e.Path, e.Kind)
	}
	return fmt.Sprintf("fingerprint %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind when the target carries no path or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Path == "" && t.Err == nil
}

var (
	ErrEngineUnavailable       = &Error{Kind: KindEngineUnavailable}
	ErrContextAllocationFailed = &Error{Kind: KindContextAllocationFailed}
	ErrDecodeFailed            = &Error{Kind: KindDecodeFailed}
	ErrRetrievalFailed         = &Error{Kind: KindRetrievalFailed}

	// ErrNoAudio is the cause reported when a file decodes to zero frames.
	ErrNoAudio = errors.New("no audio frames decoded")
	// ErrEmptyFingerprint is the cause reported when the engine returns nothing.
	ErrEmptyFingerprint = errors.New("engine returned an empty fingerprint")
)

// KindOf extracts the failure kind from err, or "" when err is not a fingerprint error.
func KindOf(err error) Kind {
	var fpErr *Error
	if errors.As(err, &fpErr) {
		return fpErr.Kind
	}
	return ""
}
