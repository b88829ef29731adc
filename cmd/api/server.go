package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/glowingemp118/vital-sign-be/internal/auth"
	"github.com/glowingemp118/vital-sign-be/internal/chat"
	"github.com/glowingemp118/vital-sign-be/internal/middleware"
)

// Server holds the chat service, the session hub and the transport plumbing.
type Server struct {
	chat     *chat.Service
	hub      *SessionHub
	auth     *auth.JWTManager
	limiter  *middleware.LimiterStore
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// newServer returns a ready-to-use Server wired with the chat service and
// transport dependencies.
func newServer(chatSvc *chat.Service, hub *SessionHub, authMgr *auth.JWTManager, limiter *middleware.LimiterStore, allowedOrigins []string, log zerolog.Logger) *Server {
	return &Server{
		chat:     chatSvc,
		hub:      hub,
		auth:     authMgr,
		limiter:  limiter,
		upgrader: newUpgrader(allowedOrigins),
		log:      log,
	}
}

// newUpgrader builds a websocket upgrader restricted to the allowed origins.
// Requests without an Origin header (native mobile clients) are accepted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		},
	}
}

// routes builds the HTTP routing table. The /chat surface requires a bearer
// token; the websocket endpoint authenticates through its connect params.
func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	r.Handle("/chat", s.protected(s.handleChatList)).Methods(http.MethodGet)
	r.Handle("/chat/message/read/{otherUserId}", s.protected(s.handleMarkAllRead)).Methods(http.MethodPut)
	r.Handle("/chat/message/{messageId}", s.protected(s.handleDeleteMessage)).Methods(http.MethodDelete)
	r.Handle("/chat/group/{groupId}/message", s.protectedLimited(s.handleSendGroupMessage)).Methods(http.MethodPost)
	r.Handle("/chat/{otherUserId}/messages", s.protected(s.handleFetchMessages)).Methods(http.MethodGet)
	r.Handle("/chat/{otherUserId}/message", s.protectedLimited(s.handleSendMessage)).Methods(http.MethodPost)
	r.Handle("/chat/{otherUserId}", s.protected(s.handleDeleteChat)).Methods(http.MethodDelete)

	return r
}

// protected wraps a handler with bearer-token authentication.
func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return middleware.Authenticate(s.auth, h)
}

// protectedLimited additionally applies the per-user rate limit; used for
// the write-heavy send endpoints.
func (s *Server) protectedLimited(h http.HandlerFunc) http.Handler {
	return middleware.Authenticate(s.auth, middleware.RateLimit(s.limiter, h))
}
