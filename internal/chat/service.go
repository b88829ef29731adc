// Package chat implements the presence-aware delivery engine and the chat
// list aggregation on top of the message store and the connection registry.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/glowingemp118/vital-sign-be/internal/data"
	"github.com/glowingemp118/vital-sign-be/internal/normalize"
	"github.com/glowingemp118/vital-sign-be/internal/notify"
)

// previewLimit caps the plaintext preview included in push notifications.
const previewLimit = 100

// backgroundTimeout bounds the fire-and-forget side effects (emits, push
// dispatch) that outlive the originating request.
const backgroundTimeout = 10 * time.Second

// MessageStore is the durable message log the engine writes through.
type MessageStore interface {
	Append(ctx context.Context, p data.AppendParams) (*data.Message, error)
	MarkDelivered(ctx context.Context, messageID, receiverID string) (*data.Message, error)
	MarkRead(ctx context.Context, readerID, counterpartID string) (int64, error)
	ListConversation(ctx context.Context, viewerID, counterpartID string, page, pageSize int64) ([]data.MessageView, error)
	View(msg *data.Message, viewerID string) data.MessageView
	DeleteConversation(ctx context.Context, a, b string) error
	DeleteMessage(ctx context.Context, messageID string) error
	ChatList(ctx context.Context, viewerID string) ([]data.ChatGroup, error)
}

// Registry tracks live transport-session bindings.
type Registry interface {
	Upsert(ctx context.Context, subjectID, objectID, connType, socketID string) (*data.Connection, error)
	Remove(ctx context.Context, subjectID, objectID, connType string) error
	FindBySubjectAndCounterpart(ctx context.Context, subjectID, counterpartID, connType string) (*data.Connection, error)
	FindBySubject(ctx context.Context, subjectID, connType string) ([]data.Connection, error)
	FindAllForGroup(ctx context.Context, groupID string) ([]data.Connection, error)
	IsReachable(ctx context.Context, subjectID string) (bool, error)
	Touch(ctx context.Context, socketID string) error
	SweepStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// UserDirectory resolves user ids to public profile fields.
type UserDirectory interface {
	GetUserByID(ctx context.Context, userID string) (*data.User, error)
}

// Emitter pushes one event to a locally held transport session. Emitting to
// a session this instance does not hold fails; the caller treats that as a
// presence gap, not a delivery error.
type Emitter interface {
	Emit(socketID, event string, payload any) error
}

// Service wires the message store, the connection registry and the external
// collaborators into the chat operations exposed to transport handlers.
type Service struct {
	msgs     MessageStore
	registry Registry
	users    UserDirectory
	emitter  Emitter
	notifier notify.Sender
	validate *validator.Validate
	log      zerolog.Logger

	pageSize int64
	baseURL  string
}

// NewService returns a ready-to-use Service.
func NewService(msgs MessageStore, registry Registry, users UserDirectory, emitter Emitter, notifier notify.Sender, log zerolog.Logger, pageSize int64, baseURL string) *Service {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Service{
		msgs:     msgs,
		registry: registry,
		users:    users,
		emitter:  emitter,
		notifier: notifier,
		validate: validator.New(),
		log:      log,
		pageSize: pageSize,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// SendMessageRequest is the typed contract for sending a message.
type SendMessageRequest struct {
	Content     string `json:"content" validate:"required"`
	MessageType string `json:"messageType" validate:"omitempty,oneof=text audio file"`
	MediaURL    string `json:"mediaUrl" validate:"omitempty,url"`
}

// SendDirect persists a direct message and routes it: live socket emit when
// the receiver's client views this conversation, push notification otherwise.
// The returned view carries the plaintext content for the sender's display.
//
// Side effects past persistence are fire-and-forget: the HTTP response never
// waits on a socket write or FCM, and their failures are logged, not
// surfaced. A receiver disconnecting between the registry lookup and the
// emit leaves the message stored with whichever state was captured at
// persist time; the next history fetch recovers the truth.
func (s *Service) SendDirect(ctx context.Context, senderID, receiverID string, req SendMessageRequest) (*data.MessageView, error) {
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErr("%v", err)
	}
	if req.MessageType == "" {
		req.MessageType = data.MessageText
	}

	if _, err := s.users.GetUserByID(ctx, receiverID); err != nil {
		if errors.Is(err, data.ErrUserNotFound) {
			return nil, notFoundErr("receiver")
		}
		return nil, err
	}

	// The tightly-scoped binding means the receiver's client is actively
	// viewing this exact conversation; any other direct binding only gets a
	// chat-list nudge. Presence reads are best-effort: a registry failure
	// degrades to "offline", it never fails the send.
	scoped, err := s.registry.FindBySubjectAndCounterpart(ctx, receiverID, senderID, data.ConversationDirect)
	if err != nil {
		s.log.Error().Err(err).Str("receiver_id", receiverID).Msg("scoped presence lookup failed")
		scoped = nil
	}
	sessions, err := s.registry.FindBySubject(ctx, receiverID, data.ConversationDirect)
	if err != nil {
		s.log.Error().Err(err).Str("receiver_id", receiverID).Msg("presence lookup failed")
		sessions = nil
	}

	status := data.StatusSent
	if scoped != nil {
		status = data.StatusDelivered
	}

	// The sender implicitly has read their own message. The receiver joins
	// the reader set only through an explicit read receipt, never through
	// delivery.
	msg, err := s.msgs.Append(ctx, data.AppendParams{
		Type:        data.ConversationDirect,
		SubjectID:   senderID,
		ObjectID:    receiverID,
		MessageType: req.MessageType,
		Content:     req.Content,
		MediaURL:    req.MediaURL,
		Readers:     []string{senderID},
		Status:      status,
	})
	if err != nil {
		return nil, err
	}

	if scoped != nil {
		go s.deliverLive(scoped, sessions, msg, receiverID)
	} else {
		go s.deliverPush(senderID, receiverID, msg, req.Content)
	}

	view := s.msgs.View(msg, senderID)
	return &view, nil
}

// deliverLive emits the message to the receiver's scoped session, nudges
// their other sessions and refreshes the scoped binding's last-active mark.
func (s *Service) deliverLive(scoped *data.Connection, sessions []data.Connection, msg *data.Message, receiverID string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	view := s.msgs.View(msg, receiverID)
	if err := s.emitter.Emit(scoped.SocketID, EventReceivedMessage, view); err != nil {
		// The receiver may have disconnected since the lookup; the stored
		// message state stays as captured at persist time.
		s.log.Warn().Err(err).Str("socket_id", scoped.SocketID).Msg("live delivery failed")
	} else if err := s.registry.Touch(ctx, scoped.SocketID); err != nil {
		s.log.Warn().Err(err).Str("socket_id", scoped.SocketID).Msg("failed to refresh binding")
	}

	for _, sess := range sessions {
		if sess.SocketID == scoped.SocketID {
			continue
		}
		if err := s.emitter.Emit(sess.SocketID, EventChatUpdated, view); err != nil {
			s.log.Warn().Err(err).Str("socket_id", sess.SocketID).Msg("chat list nudge failed")
		}
	}
}

// deliverPush escalates to a push notification with a truncated plaintext
// preview. A push failure never propagates: the message is already stored.
func (s *Service) deliverPush(senderID, receiverID string, msg *data.Message, plaintext string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	title := "New message"
	if sender, err := s.users.GetUserByID(ctx, senderID); err == nil && sender.Name != "" {
		title = sender.Name
	}

	err := s.notifier.Send(ctx, notify.Notification{
		UserID: receiverID,
		Title:  title,
		Body:   preview(plaintext),
		Data: map[string]string{
			"type":      "chat",
			"messageId": msg.ID.Hex(),
			"senderId":  senderID,
		},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("receiver_id", receiverID).Msg("push notification failed")
	}
}

// SendGroup appends a group message and emits it to every live binding of
// the group. Plain per-socket emit, no push fallback for groups.
func (s *Service) SendGroup(ctx context.Context, senderID, groupID string, req SendMessageRequest) (*data.MessageView, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErr("%v", err)
	}
	if req.MessageType == "" {
		req.MessageType = data.MessageText
	}

	msg, err := s.msgs.Append(ctx, data.AppendParams{
		Type:        data.ConversationGroup,
		SubjectID:   senderID,
		ObjectID:    groupID,
		MessageType: req.MessageType,
		Content:     req.Content,
		MediaURL:    req.MediaURL,
		Readers:     []string{senderID},
		Status:      data.StatusSent,
	})
	if err != nil {
		return nil, err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		conns, err := s.registry.FindAllForGroup(ctx, groupID)
		if err != nil {
			s.log.Error().Err(err).Str("group_id", groupID).Msg("group presence lookup failed")
			return
		}
		for _, conn := range conns {
			if conn.SubjectID == senderID {
				continue
			}
			view := s.msgs.View(msg, conn.SubjectID)
			if err := s.emitter.Emit(conn.SocketID, EventReceivedMessage, view); err != nil {
				s.log.Warn().Err(err).Str("socket_id", conn.SocketID).Msg("group delivery failed")
			}
		}
	}()

	view := s.msgs.View(msg, senderID)
	return &view, nil
}

// MarkDelivered applies a delivery acknowledgment. Only the intended
// receiver can move a SENT message to DELIVERED; everything else is a no-op
// returning nil. On success the state change is broadcast to both sides of
// the conversation.
func (s *Service) MarkDelivered(ctx context.Context, messageID, receiverID string) (*data.Message, error) {
	msg, err := s.msgs.MarkDelivered(ctx, messageID, receiverID)
	if err != nil || msg == nil {
		return nil, err
	}

	s.broadcastToPair(ctx, msg.SubjectID, msg.ObjectID, EventMessageStatus, StatusPayload{
		MessageID: msg.ID.Hex(),
		Status:    msg.Status,
	})
	return msg, nil
}

// MarkAllRead adds the reader to every unread message from the counterpart
// and broadcasts the read receipt to the conversation.
func (s *Service) MarkAllRead(ctx context.Context, readerID, counterpartID string) (int64, error) {
	modified, err := s.msgs.MarkRead(ctx, readerID, counterpartID)
	if err != nil {
		return 0, err
	}

	s.broadcastToPair(ctx, readerID, counterpartID, EventConversationRead, ReadPayload{
		ReaderID:      readerID,
		CounterpartID: counterpartID,
	})
	return modified, nil
}

// FetchMessages returns the conversation history with the counterpart,
// newest first. Viewing a conversation implies reading it, so messages
// addressed to the viewer are marked read before listing.
func (s *Service) FetchMessages(ctx context.Context, viewerID, counterpartID string, page, pageSize int64) ([]data.MessageView, error) {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}

	if _, err := s.msgs.MarkRead(ctx, viewerID, counterpartID); err != nil {
		return nil, err
	}
	return s.msgs.ListConversation(ctx, viewerID, counterpartID, page, pageSize)
}

// DeleteChat removes the whole conversation with a counterpart.
func (s *Service) DeleteChat(ctx context.Context, viewerID, counterpartID string) error {
	err := s.msgs.DeleteConversation(ctx, viewerID, counterpartID)
	if errors.Is(err, data.ErrNotFound) {
		return notFoundErr("conversation")
	}
	return err
}

// DeleteMessage removes a single message.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) error {
	err := s.msgs.DeleteMessage(ctx, messageID)
	if errors.Is(err, data.ErrNotFound) {
		return notFoundErr("message")
	}
	return err
}

// Connect validates connect parameters and registers the live binding.
func (s *Service) Connect(ctx context.Context, subjectID, objectID, connType, socketID string) (*data.Connection, error) {
	subjectID = normalize.ID(subjectID)
	objectID = normalize.ID(objectID)
	if subjectID == "" {
		return nil, validationErr("subjectId is required")
	}
	if connType == "" {
		connType = data.ConversationDirect
	}
	if connType != data.ConversationDirect && connType != data.ConversationGroup {
		return nil, validationErr("type must be direct or group")
	}
	return s.registry.Upsert(ctx, subjectID, objectID, connType, socketID)
}

// Disconnect drops the binding registered by Connect. Idempotent.
func (s *Service) Disconnect(ctx context.Context, subjectID, objectID, connType string) error {
	return s.registry.Remove(ctx, subjectID, objectID, connType)
}

// ChatRow is one conversation summary in the viewer's chat list.
type ChatRow struct {
	UserID      string           `json:"userId"`
	Name        string           `json:"name"`
	Role        string           `json:"role"`
	Image       string           `json:"image,omitempty"`
	Online      bool             `json:"online"`
	Unread      int64            `json:"unread"`
	LastMessage data.MessageView `json:"lastMessage"`
}

// ListMeta describes the pagination of a chat list response.
type ListMeta struct {
	TotalLength int   `json:"total_length"`
	TotalPages  int64 `json:"total_pages"`
	PageNo      int64 `json:"pageno"`
	Limit       int64 `json:"limit"`
}

// ChatListResult is the paginated chat list.
type ChatListResult struct {
	Meta ListMeta  `json:"meta"`
	Data []ChatRow `json:"data"`
}

// ChatList builds the viewer's conversation summaries: one row per
// counterpart with their latest message, unread count, live online flag and
// public profile, optionally filtered by a name keyword. Pagination applies
// to the summary rows, not the underlying messages.
func (s *Service) ChatList(ctx context.Context, viewerID, search string, page, limit int64) (*ChatListResult, error) {
	groups, err := s.msgs.ChatList(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	keyword := normalize.Keyword(search)
	rows := make([]ChatRow, 0, len(groups))
	for _, g := range groups {
		user, err := s.users.GetUserByID(ctx, g.Counterpart)
		if errors.Is(err, data.ErrUserNotFound) {
			// Counterpart account is gone; their conversation no longer
			// renders.
			continue
		}
		if err != nil {
			return nil, err
		}
		if !normalize.MatchesKeyword(user.Name, keyword) {
			continue
		}

		online, err := s.registry.IsReachable(ctx, g.Counterpart)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", g.Counterpart).Msg("online check failed")
			online = false
		}

		rows = append(rows, ChatRow{
			UserID:      g.Counterpart,
			Name:        user.Name,
			Role:        user.Role,
			Image:       s.imageURL(user.Image),
			Online:      online,
			Unread:      g.Unread,
			LastMessage: s.msgs.View(&g.LastMessage, viewerID),
		})
	}

	return paginateRows(rows, page, limit, s.pageSize), nil
}

// broadcastToPair emits an event to both tightly-scoped bindings of a direct
// conversation, best-effort.
func (s *Service) broadcastToPair(ctx context.Context, a, b, event string, payload any) {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		conn, err := s.registry.FindBySubjectAndCounterpart(ctx, pair[0], pair[1], data.ConversationDirect)
		if err != nil {
			s.log.Warn().Err(err).Str("subject_id", pair[0]).Msg("broadcast lookup failed")
			continue
		}
		if conn == nil {
			continue
		}
		if err := s.emitter.Emit(conn.SocketID, event, payload); err != nil {
			s.log.Warn().Err(err).Str("socket_id", conn.SocketID).Str("event", event).Msg("broadcast emit failed")
		}
	}
}

func (s *Service) imageURL(path string) string {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return fmt.Sprintf("%s/%s", s.baseURL, strings.TrimLeft(path, "/"))
}

func paginateRows(rows []ChatRow, page, limit, defaultLimit int64) *ChatListResult {
	if limit <= 0 {
		limit = defaultLimit
	}
	if page < 1 {
		page = 1
	}

	total := int64(len(rows))
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &ChatListResult{
		Meta: ListMeta{
			TotalLength: len(rows),
			TotalPages:  totalPages,
			PageNo:      page,
			Limit:       limit,
		},
		Data: rows[start:end],
	}
}

// preview truncates plaintext to the first previewLimit characters for the
// notification body.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit])
}
