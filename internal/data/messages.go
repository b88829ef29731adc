package data

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrNotFound is returned when a delete targets a message or conversation
// that does not exist.
var ErrNotFound = errors.New("not found")

// Cipher is the at-rest encryption collaborator. Decrypt is total: malformed
// or legacy values come back as-received.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(enc string) string
}

// MessagesStore provides the append-only message log with its delivery and
// read lifecycle.
type MessagesStore struct {
	coll   *mongo.Collection
	cipher Cipher
}

// NewMessagesStore returns a MessagesStore over the given collection.
func NewMessagesStore(coll *mongo.Collection, cipher Cipher) *MessagesStore {
	return &MessagesStore{coll: coll, cipher: cipher}
}

// AppendParams describes one message to persist. Content is plaintext here;
// the store encrypts before writing.
type AppendParams struct {
	Type        string
	SubjectID   string
	ObjectID    string
	MessageType string
	Content     string
	MediaURL    string
	Readers     []string
	Status      string
}

// Append persists a new message and returns it with the server-assigned id
// and timestamp. The returned Content is the stored ciphertext.
func (m *MessagesStore) Append(ctx context.Context, p AppendParams) (*Message, error) {
	enc, err := m.cipher.Encrypt(p.Content)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Type:        p.Type,
		SubjectID:   p.SubjectID,
		ObjectID:    p.ObjectID,
		MessageType: p.MessageType,
		Content:     enc,
		MediaURL:    p.MediaURL,
		Status:      p.Status,
		Readers:     p.Readers,
		CreatedAt:   time.Now(),
	}

	result, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// MarkDelivered transitions one message from SENT to DELIVERED, but only when
// called by its intended receiver while the message is still SENT. Any other
// combination (wrong party, duplicate ack, late ack) matches nothing and
// returns (nil, nil), so delivery state never regresses.
func (m *MessagesStore) MarkDelivered(ctx context.Context, messageID, receiverID string) (*Message, error) {
	id, err := bson.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, nil
	}

	filter := bson.M{"_id": id, "object_id": receiverID, "status": StatusSent}
	update := bson.M{"$set": bson.M{"status": StatusDelivered}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var msg Message
	err = m.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead adds the reader to every direct message from the counterpart that
// is addressed to the reader and not yet read by them. $addToSet keeps the
// operation idempotent under concurrent or repeated calls.
func (m *MessagesStore) MarkRead(ctx context.Context, readerID, counterpartID string) (int64, error) {
	filter := bson.M{
		"type":       ConversationDirect,
		"subject_id": counterpartID,
		"object_id":  readerID,
		"readers":    bson.M{"$ne": readerID},
	}
	update := bson.M{"$addToSet": bson.M{"readers": readerID}}

	res, err := m.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ListConversation returns the direct messages exchanged between the viewer
// and the counterpart, newest first, decrypted and projected for display.
func (m *MessagesStore) ListConversation(ctx context.Context, viewerID, counterpartID string, page, pageSize int64) ([]MessageView, error) {
	if page < 1 {
		page = 1
	}

	filter := pairFilter(viewerID, counterpartID)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	return lo.Map(messages, func(msg Message, _ int) MessageView {
		return m.View(&msg, viewerID)
	}), nil
}

// View projects a stored message into its display form for the given viewer:
// content decrypted, reader set collapsed into an isRead flag, internal
// fields dropped.
func (m *MessagesStore) View(msg *Message, viewerID string) MessageView {
	return MessageView{
		ID:          msg.ID.Hex(),
		SubjectID:   msg.SubjectID,
		ObjectID:    msg.ObjectID,
		MessageType: msg.MessageType,
		Content:     m.cipher.Decrypt(msg.Content),
		MediaURL:    msg.MediaURL,
		IsRead:      msg.ReadBy(viewerID),
		CreatedAt:   msg.CreatedAt,
	}
}

// DeleteConversation removes every message between the two users. Deleting a
// conversation that has no messages reports ErrNotFound.
func (m *MessagesStore) DeleteConversation(ctx context.Context, a, b string) error {
	res, err := m.coll.DeleteMany(ctx, pairFilter(a, b))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMessage removes a single message by id.
func (m *MessagesStore) DeleteMessage(ctx context.Context, messageID string) error {
	id, err := bson.ObjectIDFromHex(messageID)
	if err != nil {
		return ErrNotFound
	}

	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ChatList groups the viewer's direct messages by counterpart and keeps, per
// counterpart, the most recent message plus a running unread count. Groups
// come back ordered by that message's timestamp, newest conversation first.
// Profile resolution, search filtering and pagination happen in the caller,
// which owns those collaborators.
func (m *MessagesStore) ChatList(ctx context.Context, viewerID string) ([]ChatGroup, error) {
	unreadCond := bson.D{{Key: "$cond", Value: bson.A{
		bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$object_id", viewerID}}},
			bson.D{{Key: "$not", Value: bson.A{
				bson.D{{Key: "$in", Value: bson.A{
					viewerID,
					bson.D{{Key: "$ifNull", Value: bson.A{"$readers", bson.A{}}}},
				}}},
			}}},
		}}},
		1,
		0,
	}}}

	pipeline := mongo.Pipeline{
		// Every direct message the viewer sent or received.
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "type", Value: ConversationDirect},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "subject_id", Value: viewerID}},
				bson.D{{Key: "object_id", Value: viewerID}},
			}},
		}}},

		// Newest first so $first picks each group's latest message.
		bson.D{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},

		// One bucket per counterpart: whichever side of the message is not
		// the viewer.
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$subject_id", viewerID}}},
				"$object_id",
				"$subject_id",
			}}}},
			{Key: "last_message", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}},
			{Key: "unread", Value: bson.D{{Key: "$sum", Value: unreadCond}}},
		}}},

		bson.D{{Key: "$sort", Value: bson.D{{Key: "last_message.created_at", Value: -1}}}},
	}

	cursor, err := m.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var groups []ChatGroup
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// pairFilter matches both directions of a direct conversation between a and b.
func pairFilter(a, b string) bson.M {
	return bson.M{
		"type": ConversationDirect,
		"$or": bson.A{
			bson.M{"subject_id": a, "object_id": b},
			bson.M{"subject_id": b, "object_id": a},
		},
	}
}
