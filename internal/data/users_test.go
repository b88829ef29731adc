package data

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestGetUserByID_BadHex(t *testing.T) {
	users := NewUsersStore(nil)

	if _, err := users.GetUserByID(context.Background(), "not-a-hex-id"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for malformed id, got %v", err)
	}
}

func TestUsersGetAndExists(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	users := NewUsersStore(c.UsersCollection())

	res, err := c.UsersCollection().InsertOne(ctx, bson.M{"name": "Dr. Jane Smith", "role": "doctor"})
	if err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	id := res.InsertedID.(bson.ObjectID).Hex()

	user, err := users.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if user.Name != "Dr. Jane Smith" || user.Role != "doctor" {
		t.Fatalf("unexpected user %+v", user)
	}

	exists, err := users.UserExists(ctx, id)
	if err != nil {
		t.Fatalf("UserExists failed: %v", err)
	}
	if !exists {
		t.Fatal("expected seeded user to exist")
	}

	missing := bson.NewObjectID().Hex()
	if _, err := users.GetUserByID(ctx, missing); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	exists, err = users.UserExists(ctx, missing)
	if err != nil {
		t.Fatalf("UserExists failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing user to not exist")
	}
}
