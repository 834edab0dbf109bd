package usecases

import (
	"context"
	"errors"
	"github.com/practice-sem-2/chat-client/internal/models"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"github.com/sirupsen/logrus"
	"strings"
	"sync"
	"time"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("previous message is still being sent")
)

// SendResult describes what a submit did. Message is set only when the gate was open.
type SendResult struct {
	Decision GateDecision
	Message  *models.Message
}

// Composer owns the draft and turns it into a message of the active conversation.
type Composer struct {
	registry storage.Registry
	gate     *Gate
	now      func() time.Time
	logger   logrus.FieldLogger

	mu       sync.Mutex
	draft    string
	inFlight bool
}

func NewComposer(r storage.Registry, g *Gate, logger logrus.FieldLogger) *Composer {
	return &Composer{
		registry: r,
		gate:     g,
		now:      time.Now,
		logger:   logger,
	}
}

func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Composer) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Submit sends the trimmed draft. One-to-one targets go through the gate
// first. The insert notification is published once the message is committed.
// The draft is cleared when a message or a handshake was created.
func (c *Composer) Submit(ctx context.Context, me string, target models.Conversation) (res SendResult, err error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return SendResult{}, ErrSendInFlight
	}
	text := strings.TrimSpace(c.draft)
	if text == "" {
		c.mu.Unlock()
		return SendResult{}, ErrEmptyMessage
	}
	if target.IsZero() {
		c.mu.Unlock()
		return SendResult{}, ErrNoConversation
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.inFlight = false
		if err == nil && res.Decision != GateBlocked {
			c.draft = ""
		}
	}()

	if !target.IsGroup() {
		res.Decision, err = c.gate.Check(ctx, me, target.UserID)
		if err != nil || res.Decision != GateOpen {
			return res, err
		}
	}

	recipientId, groupId := target.Addressing()
	send := &models.MessageSend{
		SenderID:    me,
		RecipientID: recipientId,
		GroupID:     groupId,
		Content:     text,
	}

	if err = validateStruct(send); err != nil {
		return res, err
	}

	var msg *models.Message
	err = c.registry.Atomic(ctx, func(r storage.Registry) (err error) {
		msg, err = r.GetMessagesStore().PutMessage(ctx, send)
		return err
	})
	if err != nil {
		return res, err
	}
	res.Message = msg

	// Peers must only hear about committed rows. The message stays stored
	// when the notification is lost, it shows up on their next history load.
	err = c.registry.GetUpdatesStore().MessageInserted(&models.MessageInserted{
		UpdateMeta: models.UpdateMeta{
			Timestamp: c.now().UTC(),
		},
		Message: *msg,
	})
	if err != nil {
		c.logger.
			WithError(err).
			WithField("message_id", msg.ID).
			Error("can't publish message insert")
	}

	return res, nil
}
