package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/glowingemp118/vital-sign-be/internal/chat"
	"github.com/glowingemp118/vital-sign-be/internal/middleware"
)

// apiResponse is the uniform envelope of the REST surface.
type apiResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, apiResponse{Message: "ok"})
}

// handleChatList serves GET /chat: one summary row per counterpart with the
// latest message, unread count and live online flag.
func (s *Server) handleChatList(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		s.respond(w, http.StatusUnauthorized, apiResponse{Message: "missing auth claims"})
		return
	}

	page := queryInt(r, "pageno", 1)
	limit := queryInt(r, "limit", 0)
	search := r.URL.Query().Get("search")

	result, err := s.chat.ChatList(r.Context(), viewerID, search, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

// handleFetchMessages serves GET /chat/{otherUserId}/messages: conversation
// history, newest first. Fetching marks messages addressed to the viewer as
// read.
func (s *Server) handleFetchMessages(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		s.respond(w, http.StatusUnauthorized, apiResponse{Message: "missing auth claims"})
		return
	}
	otherUserID := mux.Vars(r)["otherUserId"]

	page := queryInt(r, "pageno", 1)
	limit := queryInt(r, "limit", 0)

	messages, err := s.chat.FetchMessages(r.Context(), viewerID, otherUserID, page, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apiResponse{Data: messages})
}

// handleSendMessage serves POST /chat/{otherUserId}/message.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		s.respond(w, http.StatusUnauthorized, apiResponse{Message: "missing auth claims"})
		return
	}
	receiverID := mux.Vars(r)["otherUserId"]

	var req chat.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
		return
	}

	view, err := s.chat.SendDirect(r.Context(), senderID, receiverID, req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, apiResponse{Message: "Message sent successfully", Data: view})
}

// handleSendGroupMessage serves POST /chat/group/{groupId}/message.
func (s *Server) handleSendGroupMessage(w http.ResponseWriter, r *http.Request) {
	senderID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		s.respond(w, http.StatusUnauthorized, apiResponse{Message: "missing auth claims"})
		return
	}
	groupID := mux.Vars(r)["groupId"]

	var req chat.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, apiResponse{Message: "invalid request body"})
		return
	}

	view, err := s.chat.SendGroup(r.Context(), senderID, groupID, req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, apiResponse{Message: "Message sent successfully", Data: view})
}

// handleDeleteChat serves DELETE /chat/{otherUserId}: drops the whole
// conversation with that user.
func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		s.respond(w, http.StatusUnauthorized, apiResponse{Message: "missing auth claims"})
		return
	}
	otherUserID := mux.Vars(r)["otherUserId"]

	if err := s.chat.DeleteChat(r.Context(), viewerID, otherUserID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apiResponse{Message: "Chat deleted successfully"})
}

// handleDeleteMessage serves DELETE /chat/message/{messageId}.
func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.UserIDFromContext(r.Context()); !ok {
		s.respond(w, http.StatusUnauthorized, apiResponse{Message: "missing auth claims"})
		return
	}
	messageID := mux.Vars(r)["messageId"]

	if err := s.chat.DeleteMessage(r.Context(), messageID); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apiResponse{Message: "Message deleted successfully"})
}

// handleMarkAllRead serves PUT /chat/message/read/{otherUserId}.
func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	readerID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		s.respond(w, http.StatusUnauthorized, apiResponse{Message: "missing auth claims"})
		return
	}
	otherUserID := mux.Vars(r)["otherUserId"]

	updated, err := s.chat.MarkAllRead(r.Context(), readerID, otherUserID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, apiResponse{
		Message: "Messages marked as read",
		Data:    map[string]int64{"updated": updated},
	})
}

// respond writes a JSON response with the given status.
func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to write response")
	}
}

// respondError maps service errors onto HTTP statuses: validation failures
// are the caller's fault, missing references are 404, everything else is an
// internal error whose details stay in the log.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		s.respond(w, http.StatusBadRequest, apiResponse{Message: err.Error()})
	case errors.Is(err, chat.ErrNotFound):
		s.respond(w, http.StatusNotFound, apiResponse{Message: err.Error()})
	default:
		s.log.Error().Err(err).Msg("request failed")
		s.respond(w, http.StatusInternalServerError, apiResponse{Message: "internal server error"})
	}
}

// queryInt reads an integer query parameter, falling back to def when the
// parameter is absent or malformed.
func queryInt(r *http.Request, name string, def int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n
}
