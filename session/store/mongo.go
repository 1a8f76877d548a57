package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrWwei/rag-agent/errors"
)

// MongoStore persists turns in a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "medqa",
		Collection: "turns",
	}
}

// NewMongoStore creates a new MongoDB-backed session store.
func NewMongoStore(config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(config.Database).Collection(config.Collection),
	}
	if err := store.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	return err
}

// AppendTurn records a completed turn.
func (s *MongoStore) AppendTurn(ctx context.Context, turn *Turn) error {
	if turn == nil {
		return fmt.Errorf("turn cannot be nil: %w", errors.ErrInvalidInput)
	}
	if turn.SessionID == "" {
		return fmt.Errorf("turn session ID cannot be empty: %w", errors.ErrInvalidInput)
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	if _, err := s.collection.InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// Turns returns the most recent turns of a session in chronological order.
func (s *MongoStore) Turns(ctx context.Context, sessionID string, limit int) ([]*Turn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer cursor.Close(ctx)

	var turns []*Turn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}

	// Query is newest-first for the limit; flip to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Clear removes all turns of a session.
func (s *MongoStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
