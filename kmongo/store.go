// Package kmongo stores accountguard tables in MongoDB, one collection per
// kv.Table, with the record key as the document _id.
package kmongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getkayan/accountguard/core/kv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type document struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Store implements kv.Store on a MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore uses db. Closing the Store disconnects client.
func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{client: client, db: db}
}

// Open connects to uri and pings the primary.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return NewStore(client, client.Database(database)), nil
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) coll(table kv.Table) *mongo.Collection {
	return s.db.Collection(string(table))
}

func (s *Store) Get(ctx context.Context, table kv.Table, key string) ([]byte, error) {
	var doc document
	err := s.coll(table).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find %s: %w", table, err)
	}
	return doc.Value, nil
}

func (s *Store) Set(ctx context.Context, table kv.Table, key string, value []byte) error {
	doc := document{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.coll(table).ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: upsert %s: %w", table, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table kv.Table, key string) error {
	if _, err := s.coll(table).DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo: delete %s: %w", table, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, table kv.Table) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll(table).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list %s: %w", table, err)
	}

	var docs []struct {
		Key string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: list %s: %w", table, err)
	}
	keys := make([]string, len(docs))
	for i, d := range docs {
		keys[i] = d.Key
	}
	return keys, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
