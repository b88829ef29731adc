package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// FCMSender pushes through Firebase Cloud Messaging. Every Send first leaves
// a notification record, then multicasts to the user's live device tokens.
type FCMSender struct {
	client *messaging.Client
	store  *Store
	log    zerolog.Logger
}

// NewFCMSender initializes the Firebase app from a service-account file and
// returns a ready Sender.
func NewFCMSender(ctx context.Context, credentialsFile string, store *Store, log zerolog.Logger) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize messaging client: %w", err)
	}

	return &FCMSender{client: client, store: store, log: log}, nil
}

// Send persists the notification and multicasts it to the user's devices.
// A user with no valid device tokens is an error the caller may swallow.
func (f *FCMSender) Send(ctx context.Context, n Notification) error {
	rec := Record{
		UserID:  n.UserID,
		Title:   n.Title,
		Message: n.Body,
		Type:    "chat",
		Data:    n.Data,
	}
	if err := f.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	tokens, err := f.store.Tokens(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no valid devices found for user %s", n.UserID)
	}

	resp, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
	})
	if err != nil {
		return fmt.Errorf("failed to send multicast: %w", err)
	}

	f.log.Debug().
		Str("user_id", n.UserID).
		Int("delivered", resp.SuccessCount).
		Int("failed", resp.FailureCount).
		Msg("push notification dispatched")
	return nil
}
