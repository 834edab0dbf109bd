package realtime

import (
	"context"
	"github.com/practice-sem-2/chat-client/internal/models"
	"sync"
)

type InsertHandler func(models.Message)

type TypingHandler func(models.TypingEvent)

type Subscription interface {
	Unsubscribe() error
}

// Channel is the publish/subscribe side of the hosted backend: row-insert
// notifications on messages and named broadcast events.
type Channel interface {
	SubscribeInserts(filter Filter, fn InsertHandler) (Subscription, error)
	SubscribeTyping(fn TypingHandler) (Subscription, error)
	BroadcastTyping(ctx context.Context, evt *models.TypingEvent) error
}

type insertSub struct {
	filter Filter
	fn     InsertHandler
}

// dispatcher fans decoded records out to the registered handlers.
// Handlers run outside the lock on the delivering goroutine.
type dispatcher struct {
	mu      sync.RWMutex
	nextId  uint64
	inserts map[uint64]insertSub
	typing  map[uint64]TypingHandler
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		inserts: make(map[uint64]insertSub),
		typing:  make(map[uint64]TypingHandler),
	}
}

func (d *dispatcher) addInsert(filter Filter, fn InsertHandler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextId++
	id := d.nextId
	d.inserts[id] = insertSub{filter: filter, fn: fn}
	return &subscription{cancel: func() {
		d.mu.Lock()
		delete(d.inserts, id)
		d.mu.Unlock()
	}}
}

func (d *dispatcher) addTyping(fn TypingHandler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextId++
	id := d.nextId
	d.typing[id] = fn
	return &subscription{cancel: func() {
		d.mu.Lock()
		delete(d.typing, id)
		d.mu.Unlock()
	}}
}

func (d *dispatcher) deliver(env *Envelope) {
	switch {
	case env.Message != nil:
		d.mu.RLock()
		handlers := make([]InsertHandler, 0, len(d.inserts))
		for _, sub := range d.inserts {
			if sub.filter.Match(env.Message) {
				handlers = append(handlers, sub.fn)
			}
		}
		d.mu.RUnlock()
		for _, fn := range handlers {
			fn(*env.Message)
		}
	case env.Typing != nil:
		d.mu.RLock()
		handlers := make([]TypingHandler, 0, len(d.typing))
		for _, fn := range d.typing {
			handlers = append(handlers, fn)
		}
		d.mu.RUnlock()
		for _, fn := range handlers {
			fn(*env.Typing)
		}
	}
}

func (d *dispatcher) subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.inserts) + len(d.typing)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(s.cancel)
	return nil
}
