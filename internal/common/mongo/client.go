// Package mongo connects to MongoDB and prepares collections for the
// document-backed repositories.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectTimeout bounds both server selection and the initial ping.
const ConnectTimeout = 5 * time.Second

// Client is a verified connection bound to one database.
type Client struct {
	conn *mongo.Client
	db   *mongo.Database
}

// Connect dials uri and pings the primary. A client that cannot reach the
// primary within ConnectTimeout is released and an error returned.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	conn, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(ConnectTimeout).
		SetConnectTimeout(ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()
	if err := conn.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = conn.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("Connected to MongoDB", "database", database)
	return &Client{conn: conn, db: conn.Database(database)}, nil
}

// Database returns the bound database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Disconnect closes the connection pool.
func (c *Client) Disconnect(ctx context.Context) error {
	slog.Info("Disconnecting from MongoDB", "database", c.db.Name())
	return c.conn.Disconnect(ctx)
}

// Index describes one index of a collection.
type Index struct {
	Collection string
	Keys       bson.D
	Options    *options.IndexOptions
}

// EnsureIndexes creates the given indexes. A failure is logged and the
// remaining indexes are still attempted.
func (c *Client) EnsureIndexes(ctx context.Context, indexes []Index) {
	for _, idx := range indexes {
		model := mongo.IndexModel{Keys: idx.Keys, Options: idx.Options}
		name, err := c.db.Collection(idx.Collection).Indexes().CreateOne(ctx, model)
		if err != nil {
			slog.Warn("Failed to create index",
				"collection", idx.Collection,
				"error", err)
			continue
		}
		slog.Debug("Index ready", "collection", idx.Collection, "index", name)
	}
}
