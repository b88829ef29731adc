package data

import (
	"context"
	"testing"
	"time"
)

func TestDirectRoomID(t *testing.T) {
	a := DirectRoomID("bob", "alice")
	b := DirectRoomID("alice", "bob")
	if a != b {
		t.Fatalf("room id must be order-independent: %q vs %q", a, b)
	}
	if a != "alice_bob" {
		t.Fatalf("expected sorted underscore join, got %q", a)
	}
}

func TestConnectionsUpsertAndFind(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}

	reg := NewConnectionRegistry(c.ConnectionsCollection(), 10*time.Minute)

	conn, err := reg.Upsert(ctx, "alice", "bob", ConversationDirect, "s1")
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if conn.ChatRoomID != "alice_bob" {
		t.Fatalf("unexpected room id %q", conn.ChatRoomID)
	}

	// reconnecting the same triple refreshes the single row
	conn, err = reg.Upsert(ctx, "alice", "bob", ConversationDirect, "s2")
	if err != nil {
		t.Fatalf("Upsert 2 failed: %v", err)
	}
	if conn.SocketID != "s2" {
		t.Fatalf("expected refreshed socket id, got %q", conn.SocketID)
	}

	conns, err := reg.FindBySubject(ctx, "alice", ConversationDirect)
	if err != nil {
		t.Fatalf("FindBySubject failed: %v", err)
	}
	if len(conns) != 1 {
		t.Fatalf("expected exactly 1 binding after reconnect, got %d", len(conns))
	}

	scoped, err := reg.FindBySubjectAndCounterpart(ctx, "alice", "bob", ConversationDirect)
	if err != nil {
		t.Fatalf("FindBySubjectAndCounterpart failed: %v", err)
	}
	if scoped == nil || scoped.SocketID != "s2" {
		t.Fatalf("expected scoped binding s2, got %+v", scoped)
	}

	// absent binding is (nil, nil), not an error
	scoped, err = reg.FindBySubjectAndCounterpart(ctx, "alice", "carol", ConversationDirect)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if scoped != nil {
		t.Fatalf("expected nil for absent binding, got %+v", scoped)
	}
}

func TestConnectionsReachabilityAndSweep(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	reg := NewConnectionRegistry(c.ConnectionsCollection(), 10*time.Minute)

	if _, err := reg.Upsert(ctx, "alice", "bob", ConversationDirect, "s1"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	online, err := reg.IsReachable(ctx, "alice")
	if err != nil {
		t.Fatalf("IsReachable failed: %v", err)
	}
	if !online {
		t.Fatal("expected alice to be reachable")
	}

	online, err = reg.IsReachable(ctx, "bob")
	if err != nil {
		t.Fatalf("IsReachable failed: %v", err)
	}
	if online {
		t.Fatal("bob holds no binding and must not be reachable")
	}

	if err := reg.Touch(ctx, "s1"); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	// a fresh binding survives the sweep
	removed, err := reg.SweepStale(ctx, 10*time.Minute)
	if err != nil {
		t.Fatalf("SweepStale failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected nothing swept, got %d", removed)
	}

	// with a zero max age everything is stale
	time.Sleep(5 * time.Millisecond)
	removed, err = reg.SweepStale(ctx, 0)
	if err != nil {
		t.Fatalf("SweepStale 2 failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 swept, got %d", removed)
	}

	online, err = reg.IsReachable(ctx, "alice")
	if err != nil {
		t.Fatalf("IsReachable failed: %v", err)
	}
	if online {
		t.Fatal("swept binding must not count as reachable")
	}
}

func TestConnectionsRemoveIsIdempotent(t *testing.T) {
	c := setupDB(t)
	defer func() { _ = c.Close(context.Background()) }()

	ctx := context.Background()
	reg := NewConnectionRegistry(c.ConnectionsCollection(), 10*time.Minute)

	if _, err := reg.Upsert(ctx, "alice", "bob", ConversationDirect, "s1"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := reg.Remove(ctx, "alice", "bob", ConversationDirect); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := reg.Remove(ctx, "alice", "bob", ConversationDirect); err != nil {
		t.Fatalf("second Remove should be a no-op, got %v", err)
	}
}
