// Package errdefs defines the error taxonomy shared by the storefront engine.
//
// Every engine operation returns one of these sentinels (possibly wrapped with
// %w) for expected outcomes, so the HTTP boundary can classify failures with
// errors.Is without string matching. FatalError is the single exception: it
// marks a post-debit inconsistency that requires operator attention and must
// never be presented as an ordinary user error.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller's role does not permit the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated indicates no validated identity was supplied.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidState indicates a workflow transition from a terminal or
	// wrong state, e.g. approving a deposit that already left Pending.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidAmount indicates a non-positive or otherwise malformed amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidMethod indicates an unrecognized payment method.
	ErrInvalidMethod = errors.New("invalid payment method")

	// ErrInsufficientFunds indicates a debit exceeding the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAlreadyOwned indicates a purchase of an already-entitled plugin.
	ErrAlreadyOwned = errors.New("already owned")

	// ErrNotEntitled indicates a download request without entitlement.
	ErrNotEntitled = errors.New("not entitled")

	// ErrConflict indicates a concurrent mutation was detected.
	ErrConflict = errors.New("conflict")
)

// FatalError wraps a failure that left, or may have left, durable state
// inconsistent after a successful debit. It must not be retried blindly.
type FatalError struct {
	Op    string
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal inconsistency in %s: %v", e.Op, e.Cause)
}

func (e *FatalError) Unwrap() error { return e.Cause }

// Fatal builds a FatalError for the given operation.
func Fatal(op string, cause error) error {
	return &FatalError{Op: op, Cause: cause}
}

// IsFatal reports whether any error in err's chain is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
