package main

import (
	"fmt"
	"sync"
)

// EventSender defines the minimal interface the hub needs from a session:
// the ability to push one named event with a JSON payload to the client.
type EventSender interface {
	SendEvent(event string, payload any) error
}

// SessionHub holds the transport sessions this server instance owns, keyed
// by socket id. It is the in-process half of presence: the durable
// connection registry decides WHO should receive an event, the hub knows
// whether WE hold that session and can write to it.
type SessionHub struct {
	mu       sync.RWMutex
	sessions map[string]EventSender
}

// NewSessionHub creates a new hub instance.
func NewSessionHub() *SessionHub {
	return &SessionHub{sessions: make(map[string]EventSender)}
}

// Register adds a session under its socket id.
func (h *SessionHub) Register(socketID string, s EventSender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[socketID] = s
}

// Unregister removes a previously-registered session.
func (h *SessionHub) Unregister(socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, socketID)
}

// Emit sends one event to the session with the given socket id. A session
// this instance does not hold, or one whose write fails, yields an error;
// failed sessions are dropped from the hub so stale handles don't linger.
func (h *SessionHub) Emit(socketID, event string, payload any) error {
	h.mu.RLock()
	s, ok := h.sessions[socketID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("session %s not connected", socketID)
	}

	if err := s.SendEvent(event, payload); err != nil {
		h.Unregister(socketID)
		return err
	}
	return nil
}

// Len reports how many sessions this instance currently holds.
func (h *SessionHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
