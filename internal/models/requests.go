package models

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// IsTerminal reports whether the recipient already answered.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestAccepted || s == RequestRejected
}

type ChatRequest struct {
	ID          string        `json:"id" db:"id"`
	SenderID    string        `json:"sender_id" db:"sender_id"`
	RecipientID string        `json:"recipient_id" db:"recipient_id"`
	Status      RequestStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}
