package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both "does not exist" and "not owned by the caller";
	// the two are deliberately indistinguishable.
	ErrNotFound = errors.New("order not found")

	// ErrValidation marks caller input that violates a pack allowance or a
	// field rule. Always carried by a ValidationError naming the field.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidOrderRefs marks a checkout ref list that did not resolve
	// one-to-one against the caller's open orders.
	ErrInvalidOrderRefs = errors.New("invalid order references")

	// ErrAlreadyFinalized rejects mutation of a COMPLETED or CANCELLED order.
	ErrAlreadyFinalized = errors.New("order already finalized")

	// ErrTransactionFailed means the atomic commit did not complete and no
	// partial result was applied; the caller should retry the whole call.
	ErrTransactionFailed = errors.New("transaction failed")
)

// ValidationError attributes a validation failure to one input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// RefCountError reports a checkout count mismatch for one order kind. It does
// not say which refs were wrong, only requested-vs-found, so callers cannot
// probe other accounts' orders.
type RefCountError struct {
	Kind      RefKind
	Requested int
	Found     int
}

func (e *RefCountError) Error() string {
	return fmt.Sprintf("invalid order references: kind=%s requested=%d found=%d", e.Kind, e.Requested, e.Found)
}

func (e *RefCountError) Unwrap() error { return ErrInvalidOrderRefs }
