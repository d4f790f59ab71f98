// Package fault defines the error taxonomy shared by every core operation.
// Backend and subsystem errors are translated into exactly one of the kinds
// below before they reach a caller; the mediator is the single funnel that
// performs the translation for resolver-backed operations.
package fault

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an operational failure.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindForbidden      Kind = "forbidden"
	KindInvalidRequest Kind = "invalid_request"
	KindBackendError   Kind = "backend_error"
	KindConflict       Kind = "conflict"
	KindTimeout        Kind = "timeout"
	KindInternal       Kind = "internal"
)

// Fault is a typed error carrying a short caller-facing reason. Operator
// detail lives in the wrapped cause and in the audit record, not here.
type Fault struct {
	Kind   Kind
	Reason string
	cause  error
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Reason, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

func (f *Fault) Unwrap() error { return f.cause }

func newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// NotFound reports that a named entity does not exist.
func NotFound(format string, args ...any) *Fault {
	return newf(KindNotFound, format, args...)
}

// Forbidden reports a policy denial. The reason is the decision's reason.
func Forbidden(format string, args ...any) *Fault {
	return newf(KindForbidden, format, args...)
}

// InvalidRequest reports a shape or validation failure.
func InvalidRequest(format string, args ...any) *Fault {
	return newf(KindInvalidRequest, format, args...)
}

// Conflict reports a duplicate or a write collision that survived retries.
func Conflict(format string, args ...any) *Fault {
	return newf(KindConflict, format, args...)
}

// Timeout reports an exceeded deadline.
func Timeout(format string, args ...any) *Fault {
	return newf(KindTimeout, format, args...)
}

// Internal reports an unexpected failure.
func Internal(format string, args ...any) *Fault {
	return newf(KindInternal, format, args...)
}

// Backend wraps a store or subprocess error, preserving the original message.
func Backend(err error, format string, args ...any) *Fault {
	return &Fault{Kind: KindBackendError, Reason: fmt.Sprintf(format, args...), cause: err}
}

// Wrap attaches a cause to a fault built by one of the constructors above.
func Wrap(f *Fault, err error) *Fault {
	f.cause = err
	return f
}

// KindOf returns the fault kind for err, mapping context errors to Timeout
// and anything unclassified to Internal.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// IsNotFound reports whether err classifies as a missing entity.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsForbidden reports whether err classifies as a policy denial.
func IsForbidden(err error) bool { return KindOf(err) == KindForbidden }

// IsInvalidRequest reports whether err classifies as a validation failure.
func IsInvalidRequest(err error) bool { return KindOf(err) == KindInvalidRequest }

// IsBackendError reports whether err classifies as a backing-store failure.
func IsBackendError(err error) bool { return KindOf(err) == KindBackendError }

// IsConflict reports whether err classifies as a conflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsTimeout reports whether err classifies as an exceeded deadline.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }
