package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yutingko/teascout/internal/types"
)

// MongoStorage persists run artifacts to MongoDB. Each SaveDataset call
// inserts one dataset document, so past runs stay queryable.
type MongoStorage struct {
	client *mongo.Client
	db     *mongo.Database
	coll   string
	logger *slog.Logger
}

// NewMongoStorage connects to MongoDB and verifies the connection.
func NewMongoStorage(uri, database, collection string, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoStorage{
		client: client,
		db:     client.Database(database),
		coll:   collection,
		logger: logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStorage) Name() string { return "mongodb" }

func (s *MongoStorage) SaveDataset(ctx context.Context, ds *types.Dataset) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.db.Collection(s.coll).InsertOne(ctx, ds)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert dataset: %w", err)}
	}
	s.logger.Info("dataset stored in mongodb", "collection", s.coll, "stores", ds.StoreCount)
	return nil
}

func (s *MongoStorage) SaveRawStores(ctx context.Context, stores []types.Store) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	doc := bson.M{
		"saved_at": time.Now().UTC(),
		"count":    len(stores),
		"stores":   stores,
	}
	_, err := s.db.Collection(s.coll+"_raw").InsertOne(ctx, doc)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert raw stores: %w", err)}
	}
	return nil
}

func (s *MongoStorage) SaveOutcomes(ctx context.Context, outcomes []types.CategoryOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	doc := bson.M{
		"saved_at": time.Now().UTC(),
		"outcomes": outcomes,
	}
	_, err := s.db.Collection(s.coll+"_outcomes").InsertOne(ctx, doc)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert outcomes: %w", err)}
	}
	return nil
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Multi-Storage Fan-Out ---

// MultiStorage fans every save out to multiple backends.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that writes to every backend.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

func (s *MultiStorage) SaveDataset(ctx context.Context, ds *types.Dataset) error {
	return s.each(func(b Storage) error { return b.SaveDataset(ctx, ds) })
}

func (s *MultiStorage) SaveRawStores(ctx context.Context, stores []types.Store) error {
	return s.each(func(b Storage) error { return b.SaveRawStores(ctx, stores) })
}

func (s *MultiStorage) SaveOutcomes(ctx context.Context, outcomes []types.CategoryOutcome) error {
	return s.each(func(b Storage) error { return b.SaveOutcomes(ctx, outcomes) })
}

func (s *MultiStorage) Close() error {
	return s.each(func(b Storage) error { return b.Close() })
}

func (s *MultiStorage) each(fn func(Storage) error) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := fn(backend); err != nil {
			s.logger.Error("backend operation failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Open builds the configured storage backend(s).
func Open(storageType, outputDir, mongoURI, mongoDB, mongoColl string, logger *slog.Logger) (Storage, error) {
	switch storageType {
	case "json":
		return NewFileStorage(outputDir, logger)
	case "mongodb":
		return NewMongoStorage(mongoURI, mongoDB, mongoColl, logger)
	case "multi":
		file, err := NewFileStorage(outputDir, logger)
		if err != nil {
			return nil, err
		}
		mg, err := NewMongoStorage(mongoURI, mongoDB, mongoColl, logger)
		if err != nil {
			return nil, err
		}
		return NewMultiStorage([]Storage{file, mg}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
