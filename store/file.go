package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// FileStore keeps one JSON file per collection under Dir, in the plain
// key → document mapping format. Writes go to a temp file that is renamed
// over the target, so readers see either the old or the new collection.
//
// The revision of a collection is the SHA-256 of its file. Writers inside one
// process are serialized per collection; separate processes sharing a data
// directory are only protected by the revision check.
type FileStore struct {
	Dir string

	// collection name -> *sync.Mutex
	locks sync.Map
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data directory %s", dir)
	}
	return &FileStore{Dir: dir}, nil
}

// lockFor acquires the process-local lock for a collection. Returns unlock func.
func (s *FileStore) lockFor(collection string) func() {
	if v, ok := s.locks.Load(collection); ok {
		m := v.(*sync.Mutex)
		m.Lock()
		return m.Unlock
	}
	actual, _ := s.locks.LoadOrStore(collection, &sync.Mutex{})
	mtx := actual.(*sync.Mutex)
	mtx.Lock()
	return mtx.Unlock
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.Dir, collection+".json")
}

func revisionOf(data []byte) string {
	if data == nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// load returns the raw file (nil when absent), the decoded collection and its revision.
func (s *FileStore) load(collection string) (Collection, string, error) {
	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return Collection{}, "", nil
		}
		return nil, "", err
	}
	docs := Collection{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, "", errors.Wrap(err, "decode collection file")
		}
	}
	return docs, revisionOf(data), nil
}

func (s *FileStore) save(collection string, docs Collection) error {
	if docs == nil {
		docs = Collection{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	target := s.path(collection)
	tmp, err := os.CreateTemp(s.Dir, collection+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *FileStore) Read(_ context.Context, collection string) (Snapshot, error) {
	docs, rev, err := s.load(collection)
	if err != nil {
		return Snapshot{}, persistErr("read", collection, "", err, "read %s", s.path(collection))
	}
	return Snapshot{Docs: docs, Revision: rev}, nil
}

func (s *FileStore) Write(_ context.Context, collection string, docs Collection) error {
	unlock := s.lockFor(collection)
	defer unlock()

	if err := s.save(collection, docs); err != nil {
		return persistErr("write", collection, "", err, "write %s", s.path(collection))
	}
	return nil
}

func (s *FileStore) CompareAndWrite(_ context.Context, collection, revision string, docs Collection) error {
	unlock := s.lockFor(collection)
	defer unlock()

	_, current, err := s.load(collection)
	if err != nil {
		return persistErr("compare-and-write", collection, "", err, "read %s", s.path(collection))
	}
	if current != revision {
		return errors.Wrapf(ErrConflict, "%s changed on disk", collection)
	}
	if err := s.save(collection, docs); err != nil {
		return persistErr("compare-and-write", collection, "", err, "write %s", s.path(collection))
	}
	return nil
}

// modify runs a read-modify-write under the collection lock.
func (s *FileStore) modify(op, collection, key string, fn func(Collection) error) error {
	unlock := s.lockFor(collection)
	defer unlock()

	docs, _, err := s.load(collection)
	if err != nil {
		return persistErr(op, collection, key, err, "read %s", s.path(collection))
	}
	if err := fn(docs); err != nil {
		return persistErr(op, collection, key, err, "apply %s", op)
	}
	if err := s.save(collection, docs); err != nil {
		return persistErr(op, collection, key, err, "write %s", s.path(collection))
	}
	return nil
}

func (s *FileStore) Push(_ context.Context, collection string, doc json.RawMessage) (string, error) {
	key := newKey()
	err := s.modify("push", collection, key, func(docs Collection) error {
		docs[key] = doc
		return nil
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *FileStore) Update(_ context.Context, collection, key string, fields map[string]any) error {
	return s.modify("update", collection, key, func(docs Collection) error {
		merged, err := mergeFields(docs[key], fields)
		if err != nil {
			return err
		}
		docs[key] = merged
		return nil
	})
}

func (s *FileStore) Delete(_ context.Context, collection, key string) error {
	if key == "" {
		unlock := s.lockFor(collection)
		defer unlock()
		if err := os.Remove(s.path(collection)); err != nil && !os.IsNotExist(err) {
			return persistErr("delete", collection, "", err, "remove %s", s.path(collection))
		}
		return nil
	}
	return s.modify("delete", collection, key, func(docs Collection) error {
		delete(docs, key)
		return nil
	})
}

func (s *FileStore) Close() error { return nil }
