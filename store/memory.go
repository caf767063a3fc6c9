package store

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

type memoryCollection struct {
	docs    Collection
	version int64
}

// MemoryStore keeps collections in process memory. It backs tests and the
// "memory" backend for demo runs.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string]*memoryCollection{}}
}

func (s *MemoryStore) get(name string) *memoryCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: Collection{}}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Read(_ context.Context, collection string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(collection)
	return Snapshot{Docs: cloneCollection(c.docs), Revision: strconv.FormatInt(c.version, 10)}, nil
}

func (s *MemoryStore) Write(_ context.Context, collection string, docs Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(collection)
	c.docs = cloneCollection(docs)
	c.version++
	return nil
}

func (s *MemoryStore) CompareAndWrite(_ context.Context, collection, revision string, docs Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(collection)
	if strconv.FormatInt(c.version, 10) != revision {
		return errors.Wrapf(ErrConflict, "%s at revision %s", collection, revision)
	}
	c.docs = cloneCollection(docs)
	c.version++
	return nil
}

func (s *MemoryStore) Push(_ context.Context, collection string, doc json.RawMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := newKey()
	c := s.get(collection)
	c.docs[key] = append(json.RawMessage(nil), doc...)
	c.version++
	return key, nil
}

func (s *MemoryStore) Update(_ context.Context, collection, key string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(collection)
	merged, err := mergeFields(c.docs[key], fields)
	if err != nil {
		return persistErr("update", collection, key, err, "merge fields")
	}
	c.docs[key] = merged
	c.version++
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.get(collection)
	if key == "" {
		c.docs = Collection{}
	} else {
		delete(c.docs, key)
	}
	c.version++
	return nil
}

func (s *MemoryStore) Close() error { return nil }
