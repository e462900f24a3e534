// Package docstore provides MongoDB connection management.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DocStore wraps a MongoDB client and the database the service uses.
type DocStore struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// ParseURL validates a MongoDB connection URL.
func ParseURL(url string) (*options.ClientOptions, error) {
	if url == "" {
		return nil, fmt.Errorf("document store URL is empty")
	}
	opts := options.Client().ApplyURI(url)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid document store URL: %w", err)
	}
	return opts, nil
}

// New connects to MongoDB and selects database.
func New(ctx context.Context, url, database string) (*DocStore, error) {
	if database == "" {
		return nil, fmt.Errorf("document store database name is empty")
	}
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting document store: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging document store: %w", err)
	}

	return &DocStore{Client: client, DB: client.Database(database)}, nil
}

// Close disconnects the client.
func (d *DocStore) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}

// HealthCheck verifies the document store connection is alive.
func (d *DocStore) HealthCheck(ctx context.Context) error {
	return d.Client.Ping(ctx, readpref.Primary())
}
