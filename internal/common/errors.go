package common

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies pipeline errors so callers can decide between retrying,
// skipping, and aborting without matching on concrete error types.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalid marks input that violates a documented contract
	// (empty title, illegal status transition). Never retried.
	KindInvalid
	// KindTransient marks recoverable infrastructure failures (I/O timeout,
	// browser crash, model unavailability, write conflict). Retried with
	// bounded backoff at the nearest enclosing component.
	KindTransient
	// KindAdapterDrift marks a site adapter or analyzer whose output no
	// longer matches expectations (zero cards on a known-good page,
	// unparseable model output). Counted, never fatal to a run.
	KindAdapterDrift
	// KindCancelled marks cooperative cancellation. Unwinds cleanly.
	KindCancelled
	// KindNotFound marks a lookup miss (fingerprint or profile).
	KindNotFound
)

// String returns the kind name used in logs and summaries.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindTransient:
		return "transient"
	case KindAdapterDrift:
		return "adapter_drift"
	case KindCancelled:
		return "cancelled"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// CoreError is the error type carried across component boundaries.
type CoreError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *CoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and the operation that produced it.
func E(kind Kind, op string, err error) error {
	return &CoreError{Kind: kind, Op: op, Err: err}
}

// Ef wraps a formatted message with a kind and operation.
func Ef(kind Kind, op, format string, args ...interface{}) error {
	return &CoreError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf classifies any error chain. Context cancellation maps to
// KindCancelled, deadline expiry and network timeouts map to KindTransient,
// everything unclassified is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	return KindUnknown
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsInvalid reports whether err is a contract violation.
func IsInvalid(err error) bool {
	return KindOf(err) == KindInvalid
}

// IsAdapterDrift reports whether err signals selector or parser rot.
func IsAdapterDrift(err error) bool {
	return KindOf(err) == KindAdapterDrift
}

// IsCancelled reports whether err came from cooperative cancellation.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
