package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// DeviceToken is one registered push endpoint of a user.
type DeviceToken struct {
	DeviceID string `bson:"device_id"`
	Platform string `bson:"platform,omitempty"`
}

// deviceDoc maps to the devices collection: one document per user holding
// all their registered devices.
type deviceDoc struct {
	UserID  string        `bson:"user_id"`
	Devices []DeviceToken `bson:"devices"`
}

// Record maps to the notifications collection; every push attempt leaves a
// durable trace the client can list later.
type Record struct {
	ID        bson.ObjectID     `bson:"_id,omitempty"`
	UserID    string            `bson:"user_id"`
	Title     string            `bson:"title"`
	Message   string            `bson:"message"`
	Type      string            `bson:"type"`
	Data      map[string]string `bson:"data,omitempty"`
	IsRead    bool              `bson:"is_read"`
	CreatedAt time.Time         `bson:"created_at"`
}

// Store persists notification records and resolves device tokens.
type Store struct {
	devices       *mongo.Collection
	notifications *mongo.Collection
}

// NewStore returns a Store over the devices and notifications collections.
func NewStore(devices, notifications *mongo.Collection) *Store {
	return &Store{devices: devices, notifications: notifications}
}

// Tokens returns the user's registered device tokens with empty entries
// filtered out. A user without devices yields an empty slice, not an error.
func (s *Store) Tokens(ctx context.Context, userID string) ([]string, error) {
	var doc deviceDoc
	err := s.devices.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tokens := make([]string, 0, len(doc.Devices))
	for _, d := range doc.Devices {
		if strings.TrimSpace(d.DeviceID) != "" {
			tokens = append(tokens, d.DeviceID)
		}
	}
	return tokens, nil
}

// Append stores one notification record with a server timestamp.
func (s *Store) Append(ctx context.Context, rec Record) error {
	rec.CreatedAt = time.Now()
	_, err := s.notifications.InsertOne(ctx, rec)
	return err
}
