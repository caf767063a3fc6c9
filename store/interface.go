package store

import (
	"context"
	"encoding/json"
)

// Collection names.
const (
	Inventory    = "inventory"
	Transactions = "transactions"
	TurnedAway   = "turned_away"
)

// Collection maps generated keys to JSON documents.
type Collection map[string]json.RawMessage

// Snapshot is a collection read together with the revision it was read at.
// Revision is opaque; only equality is meaningful.
type Snapshot struct {
	Docs     Collection
	Revision string
}

// Store is a key-collection document store. Every write replaces whole
// documents; there are no multi-document transactions. Callers that need a
// read-modify-write must go through CompareAndWrite.
type Store interface {
	// Read returns the whole collection. An absent collection is empty, never an error.
	Read(ctx context.Context, collection string) (Snapshot, error)

	// Write replaces the entire collection. Last writer wins.
	Write(ctx context.Context, collection string, docs Collection) error

	// CompareAndWrite replaces the collection only if its revision still equals
	// revision, otherwise it returns ErrConflict and writes nothing.
	CompareAndWrite(ctx context.Context, collection, revision string, docs Collection) error

	// Push stores doc under a freshly generated key and returns the key.
	Push(ctx context.Context, collection string, doc json.RawMessage) (string, error)

	// Update shallow-merges fields into the document at key, creating it if absent.
	Update(ctx context.Context, collection, key string, fields map[string]any) error

	// Delete removes the document at key, or the whole collection when key is empty.
	Delete(ctx context.Context, collection, key string) error

	Close() error
}
