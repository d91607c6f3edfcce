// Package mongostore implements docstore.Store on MongoDB.
//
// Top-level collections map one-to-one. A sub-collection such as
// "users/{key}/income" is stored in the "income" collection with a
// "_parent" field holding "users/{key}".
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tierline/tierline/internal/docstore"
)

// ParentField holds the parent document path of sub-collection documents.
const ParentField = "_parent"

// Config configures the MongoDB connection.
type Config struct {
	URI               string
	Database          string
	ConnectionTimeout time.Duration
}

// Store reads documents from a MongoDB database.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// New connects to MongoDB and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.ConnectionTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	return &Store{client: client, database: client.Database(cfg.Database)}, nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	coll, filter := s.resolve(collection)
	filter["_id"] = idValue(id)

	var raw bson.M
	err := coll.FindOne(ctx, filter).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("mongostore: get %s/%s: %w", collection, id, err)
	}
	return toDocument(raw), nil
}

// Find implements docstore.Store.
func (s *Store) Find(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	coll, filter := s.resolve(collection)
	for _, f := range filters {
		filter[f.Field] = f.Value
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: find %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, fmt.Errorf("mongostore: decode %s: %w", collection, err)
	}
	docs := make([]docstore.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, toDocument(raw))
	}
	return docs, nil
}

// EnsureIndex creates an ascending compound index on the collection that
// backs the given path. Sub-collection indexes are prefixed with the parent field.
func (s *Store) EnsureIndex(ctx context.Context, collection string, fields ...string) error {
	parent, leaf := docstore.SplitPath(collection)
	keys := bson.D{}
	if parent != "" {
		keys = append(keys, bson.E{Key: ParentField, Value: 1})
	}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	if len(keys) == 0 {
		return nil
	}
	_, err := s.database.Collection(leaf).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys})
	if err != nil {
		return fmt.Errorf("mongostore: create index on %s: %w", leaf, err)
	}
	return nil
}

// Close implements docstore.Store.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) resolve(collection string) (*mongo.Collection, bson.M) {
	parent, leaf := docstore.SplitPath(collection)
	filter := bson.M{}
	if parent != "" {
		filter[ParentField] = parent
	}
	return s.database.Collection(leaf), filter
}

func idValue(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

func toDocument(raw bson.M) docstore.Document {
	doc := docstore.Document{Data: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case "_id":
			doc.ID = fmt.Sprint(Normalize(v))
		case ParentField:
		default:
			doc.Data[k] = Normalize(v)
		}
	}
	return doc
}

// Normalize converts BSON-specific values into plain Go values: decimals
// become strings, datetimes become time.Time, and nested documents become maps.
func Normalize(v any) any {
	switch val := v.(type) {
	case primitive.Decimal128:
		return val.String()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	case primitive.ObjectID:
		return val.Hex()
	case primitive.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = Normalize(inner)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = Normalize(inner)
		}
		return out
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}
