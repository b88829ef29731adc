package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Conversation kinds. Direct chats bind exactly two users; group chats use
// the group id as the object side.
const (
	ConversationDirect = "direct"
	ConversationGroup  = "group"
)

// Message payload kinds.
const (
	MessageText  = "text"
	MessageAudio = "audio"
	MessageFile  = "file"
)

// Delivery states. Readers accumulate independently of this state: a message
// can be read while still SENT, and DELIVERED with no reader but the sender.
const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
)

// Message maps to the messages collection. Content is ciphertext at rest;
// SubjectID is the sender, ObjectID the receiver (or group id).
type Message struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Type        string        `bson:"type"`
	SubjectID   string        `bson:"subject_id"`
	ObjectID    string        `bson:"object_id"`
	MessageType string        `bson:"message_type"`
	Content     string        `bson:"content"`
	MediaURL    string        `bson:"media_url,omitempty"`
	Status      string        `bson:"status"`
	Readers     []string      `bson:"readers"`
	CreatedAt   time.Time     `bson:"created_at"`
}

// ReadBy reports whether the given user is in the message's reader set.
func (m *Message) ReadBy(userID string) bool {
	for _, r := range m.Readers {
		if r == userID {
			return true
		}
	}
	return false
}

// MessageView is the display form of a message: decrypted content, read flag
// for the requesting viewer, storage-internal fields stripped.
type MessageView struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subjectId"`
	ObjectID    string    `json:"objectId"`
	MessageType string    `json:"messageType"`
	Content     string    `json:"content"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Connection maps to the connections collection: one live transport-session
// binding per (subject, object, type) triple, upsert semantics.
type Connection struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	SubjectID  string        `bson:"subject_id"`
	ObjectID   string        `bson:"object_id"`
	Type       string        `bson:"type"`
	SocketID   string        `bson:"socket_id"`
	ChatRoomID string        `bson:"chat_room_id"`
	LastActive time.Time     `bson:"last_active"`
}

// ChatGroup is one raw chat-list aggregation bucket: the counterpart, the
// most recent message exchanged with them and the viewer's unread count.
type ChatGroup struct {
	Counterpart string  `bson:"_id"`
	LastMessage Message `bson:"last_message"`
	Unread      int64   `bson:"unread"`
}

// User is the slice of the users collection the chat core needs: enough to
// render a counterpart in the chat list.
type User struct {
	ID    bson.ObjectID `bson:"_id,omitempty"`
	Name  string        `bson:"name"`
	Role  string        `bson:"role"`
	Image string        `bson:"image,omitempty"`
}
