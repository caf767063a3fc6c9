package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrEmptyCart is returned when committing a cart without lines. Nothing is written.
	ErrEmptyCart = errors.New("cart is empty")
)

// ValidationError is bad input rejected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation helps callers distinguish between business and infrastructure failures.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// NotFoundError is a reference to a missing entity.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Collection, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PartialStockSyncError means the sale was stored but its stock decrement was
// not. The transaction stands; inventory needs manual reconciliation.
type PartialStockSyncError struct {
	TransactionID string
	Deltas        map[string]int
	Err           error
}

func (e *PartialStockSyncError) Error() string {
	ids := make([]string, 0, len(e.Deltas))
	for id := range e.Deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s:%+d", id, e.Deltas[id]))
	}
	return fmt.Sprintf("transaction %s saved but stock was not updated [%s]: %v",
		e.TransactionID, strings.Join(parts, " "), e.Err)
}

func (e *PartialStockSyncError) Unwrap() error { return e.Err }
