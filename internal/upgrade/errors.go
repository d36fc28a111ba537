package upgrade

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why an upgrade did not succeed.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid-input"
	KindNotFound          ErrorKind = "not-found"
	KindNetworkFailure    ErrorKind = "network-failure"
	KindValidationFailure ErrorKind = "validation-failure"
	KindExtractionFailure ErrorKind = "extraction-failure"
	KindInstallFailure    ErrorKind = "install-failure"
	KindCancelled         ErrorKind = "cancelled"
	KindUnknownFault      ErrorKind = "unknown-fault"
)

// Error is a classified upgrade failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain. Context
// errors are Cancelled; anything else unclassified is UnknownFault.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	if isCancellation(err) {
		return KindCancelled
	}
	return KindUnknownFault
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
