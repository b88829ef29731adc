// Package data provides DB models and stores.
package data

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ErrUserNotFound is returned when a user id resolves to nothing. User CRUD
// belongs to the platform's account service; the chat core only reads.
var ErrUserNotFound = errors.New("user not found")

// UsersStore resolves user ids to their public profile fields.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// GetUserByID finds a user by hex object id.
func (u *UsersStore) GetUserByID(ctx context.Context, userID string) (*User, error) {
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var user User
	err = u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserExists checks whether a user id resolves to a stored user.
func (u *UsersStore) UserExists(ctx context.Context, userID string) (bool, error) {
	id, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return false, nil
	}

	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
