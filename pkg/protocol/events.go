package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UserSummary is the author info nested inside a message event.
type UserSummary struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AttachmentInfo describes one attachment on a message event.
type AttachmentInfo struct {
	ID       uuid.UUID `json:"id"`
	Filename string    `json:"filename"`
	URL      string    `json:"url"`
}

// ReactionInfo describes one reaction on a message event.
type ReactionInfo struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
}

// MessageEvent is broadcast to a channel when a message is created. At
// creation time Reactions is always present and empty.
type MessageEvent struct {
	ID          uuid.UUID        `json:"id"`
	ChannelID   uuid.UUID        `json:"channel_id"`
	UserID      uuid.UUID        `json:"user_id"`
	ParentID    *uuid.UUID       `json:"parent_id"`
	Content     string           `json:"content"`
	CreatedAt   time.Time        `json:"created_at"`
	User        UserSummary      `json:"user"`
	Attachments []AttachmentInfo `json:"attachments"`
	Reactions   []ReactionInfo   `json:"reactions"`
}

// NotificationData mirrors a persisted notification row.
type NotificationData struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Content   string     `json:"content"`
	Kind      string     `json:"type"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
	RelatedID *uuid.UUID `json:"related_id"`
}

// NotificationEvent is pushed on a user's personal notification stream.
type NotificationEvent struct {
	Type string           `json:"type"`
	Data NotificationData `json:"data"`
}

// TypingEvent is the ephemeral typing indicator, relayed with the sender
// identity attached and never persisted.
type TypingEvent struct {
	Type     string     `json:"type"`
	UserID   uuid.UUID  `json:"user_id"`
	Username string     `json:"username"`
	ParentID *uuid.UUID `json:"parent_id"`
}

// SignalEvent wraps an opaque signaling payload (call setup, voice
// presence) with the sender identity.
type SignalEvent struct {
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	TargetUserID   *uuid.UUID      `json:"target_user_id"`
	SenderID       uuid.UUID       `json:"sender_id"`
	SenderUsername string          `json:"sender_username"`
}

// ReactionEvent is broadcast when a reaction is added or removed.
type ReactionEvent struct {
	Type      string    `json:"type"`
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
}
