package session

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store using MongoDB.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration.
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "regrag",
		Collection: "session_turns",
	}
}

// mongoTurn is the internal representation for MongoDB.
type mongoTurn struct {
	ID        string    `bson:"_id"`
	SessionID string    `bson:"session_id"`
	Query     string    `bson:"query"`
	Answer    string    `bson:"answer"`
	Citations []string  `bson:"citations,omitempty"`
	Outcome   string    `bson:"outcome"`
	CreatedAt time.Time `bson:"created_at"`
}

// NewMongoStore creates a MongoDB-backed turn log.
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

	collection := client.Database(config.Database).Collection(config.Collection)
	store := &MongoStore{client: client, collection: collection}

	if err := store.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

// Append inserts the turn.
func (s *MongoStore) Append(ctx context.Context, turn Turn) error {
	doc := mongoTurn{
		ID:        turn.ID,
		SessionID: turn.SessionID,
		Query:     turn.Query,
		Answer:    turn.Answer,
		Citations: turn.Citations,
		Outcome:   turn.Outcome,
		CreatedAt: turn.CreatedAt,
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

// History returns the session's turns, oldest first.
func (s *MongoStore) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		// take the newest N, then restore chronological order
		opts = options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoTurn
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}
	if limit > 0 {
		for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
			docs[i], docs[j] = docs[j], docs[i]
		}
	}

	turns := make([]Turn, len(docs))
	for i, d := range docs {
		turns[i] = Turn{
			ID:        d.ID,
			SessionID: d.SessionID,
			Query:     d.Query,
			Answer:    d.Answer,
			Citations: d.Citations,
			Outcome:   d.Outcome,
			CreatedAt: d.CreatedAt,
		}
	}
	return turns, nil
}

// Clear deletes the session's turns.
func (s *MongoStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
