package usecases

import (
	"context"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/practice-sem-2/chat-client/internal/realtime"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

// Typing broadcasts local keystrokes and tracks whether the peer of the
// active conversation is composing. Both flags clear after a fixed window.
type Typing struct {
	channel realtime.Channel
	window  time.Duration
	logger  logrus.FieldLogger

	mu          sync.Mutex
	gen         uint64
	me          string
	target      models.Conversation
	sub         realtime.Subscription
	isTyping    bool
	keystrokes  uint64
	idle        *time.Timer
	otherTyping bool
	onChange    func()
}

func NewTyping(ch realtime.Channel, window time.Duration, logger logrus.FieldLogger) *Typing {
	return &Typing{
		channel:  ch,
		window:   window,
		logger:   logger,
		onChange: func() {},
	}
}

// OnChange registers a callback fired whenever a typing flag flips.
func (t *Typing) OnChange(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Watch starts listening for typing events of target and resets both flags.
func (t *Typing) Watch(me string, target models.Conversation) error {
	t.mu.Lock()
	t.stopLocked()
	t.gen++
	gen := t.gen
	t.me = me
	t.target = target
	t.mu.Unlock()

	if target.IsZero() {
		return ErrNoConversation
	}

	sub, err := t.channel.SubscribeTyping(t.onEvent(gen))
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return sub.Unsubscribe()
	}
	t.sub = sub
	return nil
}

// Keystroke announces that the user is typing in the active conversation.
// The local flag clears once no keystroke happened for the whole window.
func (t *Typing) Keystroke(ctx context.Context) error {
	t.mu.Lock()
	me, target, gen := t.me, t.target, t.gen
	if target.IsZero() {
		t.mu.Unlock()
		return ErrNoConversation
	}
	if t.idle != nil {
		t.idle.Stop()
	}
	flipped := !t.isTyping
	t.isTyping = true
	t.keystrokes++
	seq := t.keystrokes
	t.idle = time.AfterFunc(t.window, func() {
		t.clear(gen, func() bool {
			if seq != t.keystrokes {
				return false
			}
			was := t.isTyping
			t.isTyping = false
			return was
		})
	})
	onChange := t.onChange
	t.mu.Unlock()

	if flipped {
		onChange()
	}

	recipientId, groupId := target.Addressing()
	return t.channel.BroadcastTyping(ctx, &models.TypingEvent{
		SenderID:    me,
		RecipientID: recipientId,
		GroupID:     groupId,
	})
}

func (t *Typing) IsTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isTyping
}

func (t *Typing) OtherTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.otherTyping
}

// Close stops listening and clears both flags.
func (t *Typing) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.gen++
	t.target = models.Conversation{}
}

func (t *Typing) onEvent(gen uint64) realtime.TypingHandler {
	return func(evt models.TypingEvent) {
		t.mu.Lock()
		if gen != t.gen || !t.matchesLocked(evt) {
			t.mu.Unlock()
			return
		}
		flipped := !t.otherTyping
		t.otherTyping = true
		// Every event schedules its own clear, earlier ones are not extended.
		time.AfterFunc(t.window, func() {
			t.clear(gen, func() bool {
				was := t.otherTyping
				t.otherTyping = false
				return was
			})
		})
		onChange := t.onChange
		t.mu.Unlock()

		if flipped {
			onChange()
		}
	}
}

func (t *Typing) matchesLocked(evt models.TypingEvent) bool {
	if evt.SenderID == t.me {
		return false
	}
	if t.target.IsGroup() {
		return evt.GroupID != nil && *evt.GroupID == t.target.GroupID
	}
	return evt.SenderID == t.target.UserID &&
		evt.RecipientID != nil && *evt.RecipientID == t.me
}

func (t *Typing) clear(gen uint64, reset func() bool) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	flipped := reset()
	onChange := t.onChange
	t.mu.Unlock()

	if flipped {
		onChange()
	}
}

func (t *Typing) stopLocked() {
	if t.sub != nil {
		if err := t.sub.Unsubscribe(); err != nil {
			t.logger.WithError(err).Warn("can't unsubscribe from typing events")
		}
		t.sub = nil
	}
	if t.idle != nil {
		t.idle.Stop()
		t.idle = nil
	}
	t.isTyping = false
	t.otherTyping = false
}
