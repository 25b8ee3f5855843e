// Package mongo stores transactions in MongoDB, where a unique index on
// (user_id, fingerprint) enforces deduplication at the storage layer.
package mongo

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-insights/internal/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DataStore is the subset of collection operations the repository needs.
type DataStore interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Distinct(ctx context.Context, fieldName string, filter interface{}, opts ...*options.DistinctOptions) ([]interface{}, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error)
}

// CollectionProvider hands out collections by name.
type CollectionProvider interface {
	Collection(name string) DataStore
}

// Collection adapts *mongo.Collection to DataStore.
type Collection struct {
	*mongo.Collection
}

// InsertMany inserts documents in one batch.
func (c *Collection) InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	result, err := c.Collection.InsertMany(ctx, documents, opts...)
	if err != nil {
		return result, fmt.Errorf("failed to perform InsertMany: %w", err)
	}
	return result, nil
}

// InsertOne inserts a single document.
func (c *Collection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	result, err := c.Collection.InsertOne(ctx, document, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform InsertOne: %w", err)
	}
	return result, nil
}

// CreateIndex creates model if it does not exist yet.
func (c *Collection) CreateIndex(ctx context.Context, model mongo.IndexModel) (string, error) {
	name, err := c.Collection.Indexes().CreateOne(ctx, model)
	if err != nil {
		return "", fmt.Errorf("failed to create index: %w", err)
	}
	return name, nil
}

// Provider adapts a database to CollectionProvider.
type Provider struct {
	db *mongo.Database
}

// NewProvider returns a provider for the named database.
func NewProvider(client *mongo.Client, database string) *Provider {
	return &Provider{db: client.Database(database)}
}

// Collection returns a DataStore for the given collection name.
func (p *Provider) Collection(name string) DataStore {
	return &Collection{p.db.Collection(name)}
}

// Connect establishes and verifies a connection to MongoDB.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	log := logger.FromContext(ctx)
	log.Debug().Msg("Connecting to MongoDB")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("Connect: connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("Connect: pinging MongoDB: %w", err)
	}

	log.Info().Msg("Connected to MongoDB")
	return client, nil
}
