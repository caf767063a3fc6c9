package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollections = "pos_collections"

// mongoUpdateAttempts bounds the optimistic loop behind Update.
const mongoUpdateAttempts = 5

// mongoCollection is one logical collection stored as a single document.
// Documents are kept as JSON text so numbers and decimals round-trip exactly.
type mongoCollection struct {
	Name    string            `bson:"_id"`
	Version int64             `bson:"version"`
	Docs    map[string]string `bson:"docs"`
}

// MongoStore is the hosted document backend. Each logical collection is one
// versioned document in the pos_collections collection of DB.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// MongoCredentials is the credentials blob supplied out-of-band for the hosted backend.
type MongoCredentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	AuthSource string `json:"auth_source"`
}

func NewMongoStore(ctx context.Context, uri, database string, creds *MongoCredentials) (*MongoStore, error) {
	opts := options.Client().ApplyURI(uri)
	if creds != nil {
		opts.SetAuth(options.Credential{
			Username:   creds.Username,
			Password:   creds.Password,
			AuthSource: creds.AuthSource,
		})
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongo")
	}
	return &MongoStore{client: client, coll: client.Database(database).Collection(mongoCollections)}, nil
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func toMongoDocs(docs Collection) map[string]string {
	out := make(map[string]string, len(docs))
	for k, v := range docs {
		out[k] = string(v)
	}
	return out
}

func (s *MongoStore) Read(ctx context.Context, collection string) (Snapshot, error) {
	var doc mongoCollection
	err := s.coll.FindOne(ctx, bson.M{"_id": collection}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{Docs: Collection{}, Revision: "0"}, nil
	}
	if err != nil {
		return Snapshot{}, persistErr("read", collection, "", err, "find collection")
	}
	docs := make(Collection, len(doc.Docs))
	for k, v := range doc.Docs {
		docs[k] = json.RawMessage(v)
	}
	return Snapshot{Docs: docs, Revision: strconv.FormatInt(doc.Version, 10)}, nil
}

func (s *MongoStore) Write(ctx context.Context, collection string, docs Collection) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": collection},
		bson.M{"$set": bson.M{"docs": toMongoDocs(docs)}, "$inc": bson.M{"version": 1}},
		options.Update().SetUpsert(true))
	if err != nil {
		return persistErr("write", collection, "", err, "replace collection")
	}
	return nil
}

func (s *MongoStore) CompareAndWrite(ctx context.Context, collection, revision string, docs Collection) error {
	expected, err := strconv.ParseInt(revision, 10, 64)
	if err != nil {
		return errors.Wrapf(ErrConflict, "malformed revision %q", revision)
	}
	if expected == 0 {
		_, err := s.coll.InsertOne(ctx, mongoCollection{Name: collection, Version: 1, Docs: toMongoDocs(docs)})
		if mongo.IsDuplicateKeyError(err) {
			return errors.Wrapf(ErrConflict, "%s was created concurrently", collection)
		}
		if err != nil {
			return persistErr("compare-and-write", collection, "", err, "insert collection")
		}
		return nil
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": collection, "version": expected},
		bson.M{"$set": bson.M{"docs": toMongoDocs(docs)}, "$inc": bson.M{"version": 1}})
	if err != nil {
		return persistErr("compare-and-write", collection, "", err, "update collection")
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrConflict, "%s at version %d", collection, expected)
	}
	return nil
}

func (s *MongoStore) Push(ctx context.Context, collection string, doc json.RawMessage) (string, error) {
	key := newKey()
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": collection},
		bson.M{"$set": bson.M{"docs." + key: string(doc)}, "$inc": bson.M{"version": 1}},
		options.Update().SetUpsert(true))
	if err != nil {
		return "", persistErr("push", collection, key, err, "set document")
	}
	return key, nil
}

// Update merges on the client, so it loops on the version check until the
// merge lands on the revision it was computed from.
func (s *MongoStore) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	for attempt := 0; attempt < mongoUpdateAttempts; attempt++ {
		snap, err := s.Read(ctx, collection)
		if err != nil {
			return err
		}
		merged, err := mergeFields(snap.Docs[key], fields)
		if err != nil {
			return persistErr("update", collection, key, err, "merge fields")
		}
		snap.Docs[key] = merged
		err = s.CompareAndWrite(ctx, collection, snap.Revision, snap.Docs)
		if errors.Is(err, ErrConflict) {
			continue
		}
		return err
	}
	return errors.Wrapf(ErrConflict, "update %s/%s gave up after %d attempts", collection, key, mongoUpdateAttempts)
}

func (s *MongoStore) Delete(ctx context.Context, collection, key string) error {
	update := bson.M{"$set": bson.M{"docs": bson.M{}}, "$inc": bson.M{"version": 1}}
	if key != "" {
		update = bson.M{"$unset": bson.M{"docs." + key: ""}, "$inc": bson.M{"version": 1}}
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"_id": collection}, update); err != nil {
		return persistErr("delete", collection, key, err, "delete")
	}
	return nil
}
