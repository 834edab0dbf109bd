package models

import "time"

// Broadcast event names carried on the realtime channel.
const (
	EventTyping = "typing"
)

// Tables whose inserts are published as realtime notifications.
const (
	TableMessages = "messages"
)

type UpdateMeta struct {
	Timestamp time.Time
}

// MessageInserted is the change notification emitted after a messages row is written.
type MessageInserted struct {
	UpdateMeta
	Message Message
}

// TypingEvent is an ephemeral, never persisted signal that SenderID is composing.
type TypingEvent struct {
	UpdateMeta
	SenderID    string
	RecipientID *string
	GroupID     *string
}
