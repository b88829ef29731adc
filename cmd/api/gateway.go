package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/glowingemp118/vital-sign-be/internal/chat"
)

// eventEnvelope is the frame format on the websocket channel, both
// directions: a named event plus a JSON payload.
type eventEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inboundFrame is what clients may send after connecting: delivery and read
// acknowledgments.
type inboundFrame struct {
	Event     string `json:"event"`
	MessageID string `json:"messageId,omitempty"`
	ObjectID  string `json:"objectId,omitempty"`
}

// Client-sent event names.
const (
	frameDelivered = "delivered"
	frameRead      = "read"
)

// wsSession wraps one websocket connection. gorilla/websocket allows a
// single concurrent writer, so writes are serialized with a mutex.
type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// SendEvent implements EventSender.
func (s *wsSession) SendEvent(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(eventEnvelope{Event: event, Data: payload})
}

// handleWebSocket serves GET /ws. The client identifies itself through query
// parameters (subjectId required, objectId and type optional); a successful
// connect registers a binding in the connection registry and a session in
// the hub. Disconnecting, for any reason, tears both down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	subjectID := query.Get("subjectId")
	objectID := query.Get("objectId")
	connType := query.Get("type")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := &wsSession{conn: conn}
	socketID := uuid.NewString()

	binding, err := s.chat.Connect(r.Context(), subjectID, objectID, connType, socketID)
	if err != nil {
		// Malformed connect params: report and drop before registration.
		_ = sess.SendEvent(chat.EventError, chat.ErrorPayload{Message: err.Error()})
		_ = conn.Close()
		return
	}

	s.hub.Register(socketID, sess)
	s.log.Debug().
		Str("socket_id", socketID).
		Str("subject_id", binding.SubjectID).
		Str("room", binding.ChatRoomID).
		Msg("websocket connected")

	defer func() {
		s.hub.Unregister(socketID)
		// The request context is gone once the handler unwinds; tear the
		// binding down on a fresh context.
		if err := s.chat.Disconnect(context.Background(), binding.SubjectID, binding.ObjectID, binding.Type); err != nil {
			s.log.Warn().Err(err).Str("socket_id", socketID).Msg("failed to remove binding")
		}
		_ = conn.Close()
		s.log.Debug().Str("socket_id", socketID).Msg("websocket disconnected")
	}()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.handleFrame(r.Context(), binding.SubjectID, frame)
	}
}

// handleFrame applies one client acknowledgment. Ack failures are logged and
// swallowed; the channel stays up.
func (s *Server) handleFrame(ctx context.Context, subjectID string, frame inboundFrame) {
	switch frame.Event {
	case frameDelivered:
		if _, err := s.chat.MarkDelivered(ctx, frame.MessageID, subjectID); err != nil {
			s.log.Warn().Err(err).Str("message_id", frame.MessageID).Msg("delivered ack failed")
		}
	case frameRead:
		if _, err := s.chat.MarkAllRead(ctx, subjectID, frame.ObjectID); err != nil {
			s.log.Warn().Err(err).Str("subject_id", subjectID).Msg("read ack failed")
		}
	default:
		s.log.Debug().Str("event", frame.Event).Msg("ignoring unknown frame")
	}
}
