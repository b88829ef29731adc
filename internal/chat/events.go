package chat

// Real-time event names pushed over the websocket channel.
const (
	// EventReceivedMessage carries a full message to the binding that views
	// the exact conversation the message belongs to.
	EventReceivedMessage = "receivedMessage"

	// EventChatUpdated nudges a user's other open sessions to refresh their
	// chat list.
	EventChatUpdated = "chatUpdated"

	// EventMessageStatus broadcasts a delivery-state change.
	EventMessageStatus = "message:status"

	// EventConversationRead broadcasts a bulk read receipt.
	EventConversationRead = "conversation:read"

	// EventError reports malformed connect parameters before the server
	// drops the session.
	EventError = "error"
)

// StatusPayload is the EventMessageStatus body.
type StatusPayload struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// ReadPayload is the EventConversationRead body.
type ReadPayload struct {
	ReaderID      string `json:"readerId"`
	CounterpartID string `json:"counterpartId"`
}

// ErrorPayload is the EventError body.
type ErrorPayload struct {
	Message string `json:"message"`
}
