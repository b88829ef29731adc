// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the collections used by the chat core.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, verifies the connection with a ping and returns a Client.
func New(ctx context.Context, mongoURI string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database("vital_sign"),
	}, nil
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection("users")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// ConnectionsCollection returns the socket connections collection.
func (c *Client) ConnectionsCollection() *mongo.Collection {
	return c.db.Collection("connections")
}

// NotificationsCollection returns the notifications collection.
func (c *Client) NotificationsCollection() *mongo.Collection {
	return c.db.Collection("notifications")
}

// DevicesCollection returns the registered push devices collection.
func (c *Client) DevicesCollection() *mongo.Collection {
	return c.db.Collection("devices")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the chat core relies on.
//
// The unique index on (subject_id, object_id, type) is what makes connection
// registration an atomic upsert: two racing connects for the same triple
// cannot produce two bindings.
func (c *Client) CreateIndexes(ctx context.Context) error {
	connectionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subject_id", Value: 1}, {Key: "object_id", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Serves both IsReachable lookups and the stale sweep.
			Keys: bson.D{{Key: "last_active", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "chat_room_id", Value: 1}},
		},
	}
	if _, err := c.ConnectionsCollection().Indexes().CreateMany(ctx, connectionIndexes); err != nil {
		return fmt.Errorf("failed to create connection indexes: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{
			// Conversation history: both directions of a pair, newest first.
			Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "object_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			// Chat-list aggregation sorts on creation time.
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	deviceIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.DevicesCollection().Indexes().CreateOne(ctx, deviceIndex); err != nil {
		return fmt.Errorf("failed to create device index: %w", err)
	}

	notificationIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	}
	if _, err := c.NotificationsCollection().Indexes().CreateOne(ctx, notificationIndex); err != nil {
		return fmt.Errorf("failed to create notification index: %w", err)
	}

	return nil
}
