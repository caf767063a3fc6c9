package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

//go:embed migrations.sql
var migrationSQL string

// collectionRow is one collection as stored in Postgres.
type collectionRow struct {
	Docs    []byte `db:"docs"`
	Version int64  `db:"version"`
}

// PostgresStore keeps each collection as a single JSONB row with a version
// counter. Push, Update and Delete are single statements, so they are atomic
// on the server; Write and CompareAndWrite replace the whole row.
type PostgresStore struct {
	DB *sqlx.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// Migrate creates the collections table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, migrationSQL); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, collection string) (Snapshot, error) {
	var row collectionRow
	err := s.DB.GetContext(ctx, &row, `SELECT docs, version FROM pos_collections WHERE name = $1`, collection)
	if err == sql.ErrNoRows {
		return Snapshot{Docs: Collection{}, Revision: "0"}, nil
	}
	if err != nil {
		return Snapshot{}, persistErr("read", collection, "", err, "select collection")
	}
	docs := Collection{}
	if err := json.Unmarshal(row.Docs, &docs); err != nil {
		return Snapshot{}, persistErr("read", collection, "", err, "decode collection")
	}
	return Snapshot{Docs: docs, Revision: strconv.FormatInt(row.Version, 10)}, nil
}

func encodeCollection(docs Collection) (string, error) {
	if docs == nil {
		docs = Collection{}
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *PostgresStore) Write(ctx context.Context, collection string, docs Collection) error {
	payload, err := encodeCollection(docs)
	if err != nil {
		return persistErr("write", collection, "", err, "encode collection")
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO pos_collections (name, docs, version) VALUES ($1, $2, 1)
		ON CONFLICT (name)
		DO UPDATE SET docs = EXCLUDED.docs, version = pos_collections.version + 1
	`, collection, payload)
	if err != nil {
		return persistErr("write", collection, "", err, "upsert collection")
	}
	return nil
}

func (s *PostgresStore) CompareAndWrite(ctx context.Context, collection, revision string, docs Collection) error {
	expected, err := strconv.ParseInt(revision, 10, 64)
	if err != nil {
		return errors.Wrapf(ErrConflict, "malformed revision %q", revision)
	}
	payload, err := encodeCollection(docs)
	if err != nil {
		return persistErr("compare-and-write", collection, "", err, "encode collection")
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.DB.ExecContext(ctx,
			`INSERT INTO pos_collections (name, docs, version) VALUES ($1, $2, 1) ON CONFLICT (name) DO NOTHING`,
			collection, payload)
	} else {
		res, err = s.DB.ExecContext(ctx,
			`UPDATE pos_collections SET docs = $2, version = version + 1 WHERE name = $1 AND version = $3`,
			collection, payload, expected)
	}
	if err != nil {
		return persistErr("compare-and-write", collection, "", err, "write collection")
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return persistErr("compare-and-write", collection, "", err, "rows affected")
	}
	if ra == 0 {
		return errors.Wrapf(ErrConflict, "%s at version %d", collection, expected)
	}
	return nil
}

func (s *PostgresStore) Push(ctx context.Context, collection string, doc json.RawMessage) (string, error) {
	key := newKey()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pos_collections (name, docs, version) VALUES ($1, jsonb_build_object($2::text, $3::jsonb), 1)
		ON CONFLICT (name)
		DO UPDATE SET docs = pos_collections.docs || EXCLUDED.docs, version = pos_collections.version + 1
	`, collection, key, string(doc))
	if err != nil {
		return "", persistErr("push", collection, key, err, "insert document")
	}
	return key, nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return persistErr("update", collection, key, err, "encode fields")
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO pos_collections (name, docs, version) VALUES ($1, jsonb_build_object($2::text, $3::jsonb), 1)
		ON CONFLICT (name)
		DO UPDATE SET docs = jsonb_set(pos_collections.docs, ARRAY[$2::text], COALESCE(pos_collections.docs -> $2::text, '{}'::jsonb) || $3::jsonb),
			version = pos_collections.version + 1
	`, collection, key, string(patch))
	if err != nil {
		return persistErr("update", collection, key, err, "merge document")
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	var err error
	if key == "" {
		// Emptied rather than dropped so the version keeps increasing.
		_, err = s.DB.ExecContext(ctx,
			`UPDATE pos_collections SET docs = '{}'::jsonb, version = version + 1 WHERE name = $1`,
			collection)
	} else {
		_, err = s.DB.ExecContext(ctx,
			`UPDATE pos_collections SET docs = docs - $2::text, version = version + 1 WHERE name = $1`,
			collection, key)
	}
	if err != nil {
		return persistErr("delete", collection, key, err, "delete")
	}
	return nil
}
