package data

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ConnectionRegistry tracks live transport-session bindings in the
// connections collection. Because it is backed by shared storage rather than
// a per-process map, presence answers stay correct when several server
// instances run behind a load balancer.
type ConnectionRegistry struct {
	coll       *mongo.Collection
	staleAfter time.Duration
}

// NewConnectionRegistry returns a registry using the given collection.
// Bindings idle longer than staleAfter no longer count as reachable.
func NewConnectionRegistry(coll *mongo.Collection, staleAfter time.Duration) *ConnectionRegistry {
	return &ConnectionRegistry{coll: coll, staleAfter: staleAfter}
}

// DirectRoomID derives the room identifier for a direct conversation. It is
// order-independent (sorted, underscore-joined) so both participants compute
// the same value. An absent side yields a placeholder room that no emit path
// will match until both ids are known.
func DirectRoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// Upsert creates or refreshes the one binding for (subject, object, type).
// The unique index on that triple makes concurrent connects collapse into a
// single row holding the most recent socket id. objectID may be empty: group
// lobbies don't have one, and a direct client may connect before choosing a
// counterpart.
func (r *ConnectionRegistry) Upsert(ctx context.Context, subjectID, objectID, connType, socketID string) (*Connection, error) {
	var room string
	switch connType {
	case ConversationGroup:
		room = objectID
	default:
		room = DirectRoomID(subjectID, objectID)
	}

	filter := bson.M{"subject_id": subjectID, "type": connType}
	set := bson.M{
		"socket_id":    socketID,
		"chat_room_id": room,
		"last_active":  time.Now(),
	}
	update := bson.M{"$set": set}
	if objectID != "" {
		filter["object_id"] = objectID
	} else {
		update["$setOnInsert"] = bson.M{"object_id": ""}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var conn Connection
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// Remove deletes every binding matching the filter. Removing a binding that
// is already gone is a no-op, not an error.
func (r *ConnectionRegistry) Remove(ctx context.Context, subjectID, objectID, connType string) error {
	filter := bson.M{"subject_id": subjectID, "type": connType}
	if objectID != "" {
		filter["object_id"] = objectID
	}
	_, err := r.coll.DeleteMany(ctx, filter)
	return err
}

// FindBySubjectAndCounterpart returns the binding the subject holds for this
// exact counterpart, or nil if there is none.
func (r *ConnectionRegistry) FindBySubjectAndCounterpart(ctx context.Context, subjectID, counterpartID, connType string) (*Connection, error) {
	filter := bson.M{"subject_id": subjectID, "object_id": counterpartID, "type": connType}

	var conn Connection
	err := r.coll.FindOne(ctx, filter).Decode(&conn)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// FindBySubject returns all bindings the subject holds under the given kind,
// e.g. every open tab of a user regardless of which conversation it views.
func (r *ConnectionRegistry) FindBySubject(ctx context.Context, subjectID, connType string) ([]Connection, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"subject_id": subjectID, "type": connType})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conns []Connection
	if err := cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// FindAllForGroup returns every live binding registered for the group.
func (r *ConnectionRegistry) FindAllForGroup(ctx context.Context, groupID string) ([]Connection, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"object_id": groupID, "type": ConversationGroup})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conns []Connection
	if err := cursor.All(ctx, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// IsReachable reports whether the subject holds at least one non-stale
// binding under any kind.
func (r *ConnectionRegistry) IsReachable(ctx context.Context, subjectID string) (bool, error) {
	filter := bson.M{
		"subject_id":  subjectID,
		"last_active": bson.M{"$gte": time.Now().Add(-r.staleAfter)},
	}
	count, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Touch refreshes last_active for every binding held by the given socket.
// Called after a successful emit so active sessions outlive the stale sweep.
func (r *ConnectionRegistry) Touch(ctx context.Context, socketID string) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"socket_id": socketID},
		bson.M{"$set": bson.M{"last_active": time.Now()}},
	)
	return err
}

// SweepStale deletes bindings whose last_active is older than maxAge and
// returns how many were removed.
func (r *ConnectionRegistry) SweepStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res, err := r.coll.DeleteMany(ctx, bson.M{"last_active": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
