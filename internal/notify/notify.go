// Package notify delivers push notifications to a user's registered devices.
//
// The delivery engine only sees the Sender interface; the production
// implementation persists a notification record and multicasts through
// Firebase Cloud Messaging. Delivery is best-effort everywhere: the message
// a notification points at is already durably stored by the time Send runs.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notification is one push request: who to reach and what to show.
type Notification struct {
	UserID string
	Title  string
	Body   string
	// Data carries metadata linking back to the originating message so the
	// client can deep-link into the right conversation.
	Data map[string]string
}

// Sender delivers a notification to every registered device of a user.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender is the development fallback used when no FCM credentials are
// configured: notifications are logged and dropped.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender returns a Sender that only logs.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the notification and reports success.
func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.log.Info().
		Str("user_id", n.UserID).
		Str("title", n.Title).
		Msg("push notification (log only)")
	return nil
}
