package data

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/glowingemp118/vital-sign-be/internal/crypt"
	"github.com/glowingemp118/vital-sign-be/internal/db"
)

func setupDB(t *testing.T) *db.Client {
	// no env loader; require MONGODB_URI set externally for integration tests
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := db.New(ctx, uri)
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}

	// ensure clean collections in case previous runs left data
	_ = c.UsersCollection().Drop(ctx)
	_ = c.MessagesCollection().Drop(ctx)
	_ = c.ConnectionsCollection().Drop(ctx)

	return c
}

func testCipher(t *testing.T) *crypt.Codec {
	t.Helper()
	c, err := crypt.New("integration-test-passphrase")
	if err != nil {
		t.Fatalf("crypt.New failed: %v", err)
	}
	return c
}

func TestMessagesAppendAndList(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	msgs := NewMessagesStore(c.MessagesCollection(), testCipher(t))

	first, err := msgs.Append(ctx, AppendParams{
		Type: ConversationDirect, SubjectID: "alice", ObjectID: "bob",
		MessageType: MessageText, Content: "hi bob", Readers: []string{"alice"}, Status: StatusSent,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if first.Content == "hi bob" {
		t.Fatal("expected stored content to be ciphertext")
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := msgs.Append(ctx, AppendParams{
		Type: ConversationDirect, SubjectID: "bob", ObjectID: "alice",
		MessageType: MessageText, Content: "hello alice", Readers: []string{"bob"}, Status: StatusSent,
	}); err != nil {
		t.Fatalf("Append 2 failed: %v", err)
	}

	views, err := msgs.ListConversation(ctx, "alice", "bob", 1, 10)
	if err != nil {
		t.Fatalf("ListConversation failed: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(views))
	}
	if views[0].Content != "hello alice" {
		t.Fatalf("expected newest first and decrypted, got %q", views[0].Content)
	}
	if views[0].IsRead {
		t.Fatal("alice has not read bob's message yet")
	}
	if !views[1].IsRead {
		t.Fatal("alice should see her own message as read")
	}
}

func TestMessagesDeliveryTransition(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	msgs := NewMessagesStore(c.MessagesCollection(), testCipher(t))

	msg, err := msgs.Append(ctx, AppendParams{
		Type: ConversationDirect, SubjectID: "alice", ObjectID: "bob",
		MessageType: MessageText, Content: "x", Readers: []string{"alice"}, Status: StatusSent,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// the sender cannot ack delivery
	if got, err := msgs.MarkDelivered(ctx, msg.ID.Hex(), "alice"); err != nil || got != nil {
		t.Fatalf("expected no-op for wrong party, got %v, %v", got, err)
	}

	got, err := msgs.MarkDelivered(ctx, msg.ID.Hex(), "bob")
	if err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}
	if got == nil || got.Status != StatusDelivered {
		t.Fatalf("expected DELIVERED, got %+v", got)
	}

	// duplicate ack matches nothing
	if got, err := msgs.MarkDelivered(ctx, msg.ID.Hex(), "bob"); err != nil || got != nil {
		t.Fatalf("expected no-op for duplicate ack, got %v, %v", got, err)
	}
}

func TestMessagesMarkRead(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	msgs := NewMessagesStore(c.MessagesCollection(), testCipher(t))

	for i := 0; i < 2; i++ {
		if _, err := msgs.Append(ctx, AppendParams{
			Type: ConversationDirect, SubjectID: "alice", ObjectID: "bob",
			MessageType: MessageText, Content: "m", Readers: []string{"alice"}, Status: StatusSent,
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	modified, err := msgs.MarkRead(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if modified != 2 {
		t.Fatalf("expected 2 modified, got %d", modified)
	}

	// idempotent under repeated receipts
	modified, err = msgs.MarkRead(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("MarkRead 2 failed: %v", err)
	}
	if modified != 0 {
		t.Fatalf("expected 0 modified on repeat, got %d", modified)
	}
}

func TestMessagesChatList(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	msgs := NewMessagesStore(c.MessagesCollection(), testCipher(t))

	// two unread from bob, one older exchange with carol
	if _, err := msgs.Append(ctx, AppendParams{
		Type: ConversationDirect, SubjectID: "carol", ObjectID: "alice",
		MessageType: MessageText, Content: "old", Readers: []string{"carol", "alice"}, Status: StatusSent,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	for _, content := range []string{"one", "two"} {
		if _, err := msgs.Append(ctx, AppendParams{
			Type: ConversationDirect, SubjectID: "bob", ObjectID: "alice",
			MessageType: MessageText, Content: content, Readers: []string{"bob"}, Status: StatusSent,
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	groups, err := msgs.ChatList(ctx, "alice")
	if err != nil {
		t.Fatalf("ChatList failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(groups))
	}
	if groups[0].Counterpart != "bob" {
		t.Fatalf("expected the freshest conversation first, got %q", groups[0].Counterpart)
	}
	if groups[0].Unread != 2 {
		t.Fatalf("expected 2 unread from bob, got %d", groups[0].Unread)
	}
	if groups[1].Unread != 0 {
		t.Fatalf("expected 0 unread from carol, got %d", groups[1].Unread)
	}
}

func TestMessagesDelete(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	msgs := NewMessagesStore(c.MessagesCollection(), testCipher(t))

	msg, err := msgs.Append(ctx, AppendParams{
		Type: ConversationDirect, SubjectID: "alice", ObjectID: "bob",
		MessageType: MessageText, Content: "m", Readers: []string{"alice"}, Status: StatusSent,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := msgs.DeleteMessage(ctx, msg.ID.Hex()); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if err := msgs.DeleteMessage(ctx, msg.ID.Hex()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	if err := msgs.DeleteConversation(ctx, "alice", "bob"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for empty conversation, got %v", err)
	}
}

func TestView_ProjectsForViewer(t *testing.T) {
	cipher := testCipher(t)
	msgs := NewMessagesStore(nil, cipher)

	enc, err := cipher.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	msg := &Message{
		ID:          bson.NewObjectID(),
		Type:        ConversationDirect,
		SubjectID:   "alice",
		ObjectID:    "bob",
		MessageType: MessageText,
		Content:     enc,
		Status:      StatusSent,
		Readers:     []string{"alice"},
		CreatedAt:   time.Now(),
	}

	forSender := msgs.View(msg, "alice")
	if forSender.Content != "hello" {
		t.Fatalf("expected decrypted content, got %q", forSender.Content)
	}
	if !forSender.IsRead {
		t.Fatal("sender should see the message as read")
	}

	forReceiver := msgs.View(msg, "bob")
	if forReceiver.IsRead {
		t.Fatal("receiver has not read the message")
	}
}
