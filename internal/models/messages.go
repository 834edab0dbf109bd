package models

import "time"

type Message struct {
	ID          string    `json:"id" db:"id"`
	SenderID    string    `json:"sender_id" db:"sender_id"`
	RecipientID *string   `json:"recipient_id,omitempty" db:"recipient_id"` // nil for group messages
	GroupID     *string   `json:"group_id,omitempty" db:"group_id"`         // nil for direct messages
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	Read        bool      `json:"read" db:"read"`
}

type MessageSend struct {
	SenderID    string  `validate:"required,uuid"`
	RecipientID *string `validate:"required_without=GroupID,excluded_with=GroupID"`
	GroupID     *string `validate:"required_without=RecipientID"`
	Content     string  `validate:"required,max=4000"`
}

// Conversation identifies the active chat target. At most one field is set.
type Conversation struct {
	UserID  string
	GroupID string
}

func DirectConversation(userID string) Conversation {
	return Conversation{UserID: userID}
}

func GroupConversation(groupID string) Conversation {
	return Conversation{GroupID: groupID}
}

func (c Conversation) IsZero() bool {
	return c.UserID == "" && c.GroupID == ""
}

func (c Conversation) IsGroup() bool {
	return c.GroupID != ""
}

// Addressing fills recipient or group id of an outgoing message for this conversation.
func (c Conversation) Addressing() (recipientID, groupID *string) {
	if c.IsGroup() {
		id := c.GroupID
		return nil, &id
	}
	if c.UserID != "" {
		id := c.UserID
		return &id, nil
	}
	return nil, nil
}
