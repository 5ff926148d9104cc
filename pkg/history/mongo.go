package history

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultDatabase   = "pyvet"
	defaultCollection = "reports"
)

// MongoStore persists history entries in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB at uri and verifies connectivity.
// Entries are stored in the "reports" collection of the "pyvet" database.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect history store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping history store: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(defaultDatabase).Collection(defaultCollection),
	}, nil
}

// Append stores a new entry.
func (s *MongoStore) Append(ctx context.Context, entry *Entry) error {
	if _, err := s.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// Get retrieves an entry by ID.
func (s *MongoStore) Get(ctx context.Context, id string) (*Entry, error) {
	var entry Entry
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get history entry: %w", err)
	}
	return &entry, nil
}

// List returns the most recent entries, newest first.
func (s *MongoStore) List(ctx context.Context, limit int) ([]Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list history entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode history entries: %w", err)
	}
	return entries, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
