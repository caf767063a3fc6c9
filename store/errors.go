package store

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConflict is returned by CompareAndWrite when the collection moved on
// since it was read.
var ErrConflict = errors.New("collection revision changed")

// PersistenceError is an I/O failure at the storage layer. A failed write never
// leaves a partially written collection behind.
type PersistenceError struct {
	Op         string
	Collection string
	Key        string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistErr(op, collection, key string, err error, format string, args ...any) error {
	return &PersistenceError{
		Op:         op,
		Collection: collection,
		Key:        key,
		Err:        errors.Wrapf(err, format, args...),
	}
}
