package realtime

import (
	"context"
	"github.com/practice-sem-2/chat-client/internal/models"
	"time"
)

// Hub is an in-process Channel. Publishing delivers synchronously to every
// matching subscriber, which makes it suitable for a single-process setup
// and for tests.
type Hub struct {
	*dispatcher
	now func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		dispatcher: newDispatcher(),
		now:        time.Now,
	}
}

func (h *Hub) SubscribeInserts(filter Filter, fn InsertHandler) (Subscription, error) {
	return h.addInsert(filter, fn), nil
}

func (h *Hub) SubscribeTyping(fn TypingHandler) (Subscription, error) {
	return h.addTyping(fn), nil
}

func (h *Hub) BroadcastTyping(_ context.Context, evt *models.TypingEvent) error {
	e := *evt
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now()
	}
	h.deliver(&Envelope{Kind: KindBroadcast, Topic: models.EventTyping, SentAt: e.Timestamp, Typing: &e})
	return nil
}

// MessageInserted publishes an insert notification. It satisfies the updates
// store contract so a Hub can stand in for the Kafka producer.
func (h *Hub) MessageInserted(upd *models.MessageInserted) error {
	msg := upd.Message
	h.deliver(&Envelope{Kind: KindInsert, Topic: models.TableMessages, SentAt: upd.Timestamp, Message: &msg})
	return nil
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	return h.subscribers()
}
