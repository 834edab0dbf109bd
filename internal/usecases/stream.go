package usecases

import (
	"context"
	"errors"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/practice-sem-2/chat-client/internal/notify"
	"github.com/practice-sem-2/chat-client/internal/realtime"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"github.com/sirupsen/logrus"
	"sort"
	"sync"
	"time"
)

var (
	ErrNoConversation = errors.New("no conversation is selected")
	ErrStaleLoad      = errors.New("conversation changed while history was loading")
)

const markReadTimeout = 5 * time.Second

// Listener observes every change of the message list, e.g. to scroll to the latest one.
type Listener func(messages []models.Message)

// Popup is the transient notification about the newest inbound message.
type Popup struct {
	MessageID string
	SenderID  string
	Sender    string
	Content   string
}

type StreamConfig struct {
	Notifications   bool
	NotificationTTL time.Duration
}

// Stream keeps the message list of the active conversation: its history plus
// live inserts delivered by the realtime channel.
type Stream struct {
	registry storage.Registry
	channel  realtime.Channel
	notifier notify.Notifier
	cfg      *StreamConfig
	logger   logrus.FieldLogger

	mu        sync.Mutex
	gen       uint64
	me        string
	target    models.Conversation
	messages  []models.Message
	ids       map[string]struct{}
	sub       realtime.Subscription
	listeners []Listener
	names     func(userId string) string
	notified  map[models.Conversation]string // newest notified message id
	popup     *Popup
	dismiss   *time.Timer
}

func NewStream(r storage.Registry, ch realtime.Channel, n notify.Notifier, cfg *StreamConfig, logger logrus.FieldLogger) *Stream {
	if n == nil {
		n = notify.Discard{}
	}
	return &Stream{
		registry: r,
		channel:  ch,
		notifier: n,
		cfg:      cfg,
		logger:   logger,
		ids:      make(map[string]struct{}),
		notified: make(map[models.Conversation]string),
		names:    func(userId string) string { return userId },
	}
}

// SetSenderNames sets how pop-ups name the sender of a message.
func (s *Stream) SetSenderNames(fn func(userId string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = fn
}

func (s *Stream) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Subscribe switches the stream to target. The previous subscription is torn
// down and the list is emptied until Load fills it.
func (s *Stream) Subscribe(me string, target models.Conversation) error {
	if target.IsZero() {
		return ErrNoConversation
	}

	s.mu.Lock()
	s.unsubscribeLocked()
	s.gen++
	gen := s.gen
	s.me = me
	s.target = target
	s.messages = nil
	s.ids = make(map[string]struct{})
	s.mu.Unlock()

	filter := realtime.Eq("sender_id", target.UserID)
	if target.IsGroup() {
		filter = realtime.Eq("group_id", target.GroupID)
	}

	sub, err := s.channel.SubscribeInserts(filter, s.onInsert(gen))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return sub.Unsubscribe()
	}
	s.sub = sub
	s.mu.Unlock()

	s.logger.
		WithField("filter", filter.String()).
		Debug("subscribed to conversation")

	s.changed()
	return nil
}

// Load fetches the whole history of the active conversation, oldest first,
// and merges in live messages that arrived meanwhile.
func (s *Stream) Load(ctx context.Context) ([]models.Message, error) {
	s.mu.Lock()
	gen, me, target := s.gen, s.me, s.target
	s.mu.Unlock()

	if target.IsZero() {
		return nil, ErrNoConversation
	}

	var (
		history []models.Message
		err     error
	)
	store := s.registry.GetMessagesStore()
	if target.IsGroup() {
		history, err = store.GetGroupHistory(ctx, target.GroupID)
	} else {
		history, err = store.GetDirectHistory(ctx, me, target.UserID)
	}

	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, ErrStaleLoad
	}
	live := s.messages
	s.messages = make([]models.Message, 0, len(history)+len(live))
	s.ids = make(map[string]struct{}, len(history)+len(live))
	for _, m := range history {
		s.appendLocked(m)
	}
	for _, m := range live {
		s.appendLocked(m)
	}
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.Before(s.messages[j].CreatedAt)
	})
	loaded := copyMessages(s.messages)
	s.mu.Unlock()

	s.changed()
	return loaded, nil
}

// MarkRead flags every unread message from the selected user to me as read.
// Group conversations have no read tracking.
func (s *Stream) MarkRead(ctx context.Context) (int64, error) {
	s.mu.Lock()
	me, target := s.me, s.target
	s.mu.Unlock()

	if target.IsZero() {
		return 0, ErrNoConversation
	}
	if target.IsGroup() {
		return 0, nil
	}
	return s.registry.GetMessagesStore().MarkRead(ctx, me, target.UserID)
}

// Append adds a message of the active conversation, e.g. the row returned by a
// send. Messages already in the list are ignored.
func (s *Stream) Append(m models.Message) bool {
	s.mu.Lock()
	added := s.belongsLocked(m) && s.appendLocked(m)
	s.mu.Unlock()

	if added {
		s.changed()
	}
	return added
}

func (s *Stream) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMessages(s.messages)
}

func (s *Stream) Conversation() models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

func (s *Stream) Popup() *Popup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.popup == nil {
		return nil
	}
	p := *s.popup
	return &p
}

// Close drops the subscription and the local list.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribeLocked()
	s.gen++
	s.target = models.Conversation{}
	s.messages = nil
	s.ids = make(map[string]struct{})
	if s.dismiss != nil {
		s.dismiss.Stop()
	}
	s.popup = nil
}

func (s *Stream) onInsert(gen uint64) realtime.InsertHandler {
	return func(m models.Message) {
		s.mu.Lock()
		if gen != s.gen || !s.belongsLocked(m) {
			s.mu.Unlock()
			return
		}
		added := s.appendLocked(m)
		me, target := s.me, s.target
		s.mu.Unlock()

		if !added {
			return
		}
		s.changed()

		if !target.IsGroup() && m.SenderID != me {
			go s.markRead(me, target.UserID)
		}
	}
}

func (s *Stream) markRead(me string, other string) {
	ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
	defer cancel()

	_, err := s.registry.GetMessagesStore().MarkRead(ctx, me, other)
	if err != nil {
		s.logger.WithError(err).Error("can't mark messages as read")
	}
}

// belongsLocked is the local half of the two-stage filter: the channel filters
// by sender or group, this checks the direction.
func (s *Stream) belongsLocked(m models.Message) bool {
	if s.target.IsGroup() {
		return m.GroupID != nil && *m.GroupID == s.target.GroupID
	}
	if m.RecipientID == nil || m.GroupID != nil {
		return false
	}
	other := s.target.UserID
	return (m.SenderID == other && *m.RecipientID == s.me) ||
		(m.SenderID == s.me && *m.RecipientID == other)
}

func (s *Stream) appendLocked(m models.Message) bool {
	if _, ok := s.ids[m.ID]; ok {
		return false
	}
	s.ids[m.ID] = struct{}{}
	s.messages = append(s.messages, m)
	return true
}

func (s *Stream) changed() {
	s.mu.Lock()
	messages := copyMessages(s.messages)
	listeners := append([]Listener(nil), s.listeners...)
	candidate := s.popupCandidateLocked()
	names := s.names
	s.mu.Unlock()

	if candidate != nil {
		candidate.Sender = names(candidate.SenderID)
		s.raise(candidate)
	}

	for _, l := range listeners {
		l(messages)
	}
}

// popupCandidateLocked picks the newest inbound message of the active
// conversation unless it was already notified.
func (s *Stream) popupCandidateLocked() *Popup {
	if !s.cfg.Notifications {
		return nil
	}
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.SenderID == s.me {
			continue
		}
		if m.ID == s.notified[s.target] {
			return nil
		}
		s.notified[s.target] = m.ID
		return &Popup{
			MessageID: m.ID,
			SenderID:  m.SenderID,
			Content:   m.Content,
		}
	}
	return nil
}

func (s *Stream) raise(p *Popup) {
	s.mu.Lock()
	if s.notified[s.target] != p.MessageID {
		s.mu.Unlock()
		return
	}
	popup := *p
	s.popup = &popup
	if s.dismiss != nil {
		s.dismiss.Stop()
	}
	s.dismiss = time.AfterFunc(s.cfg.NotificationTTL, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.popup != nil && s.popup.MessageID == popup.MessageID {
			s.popup = nil
		}
	})
	s.mu.Unlock()

	if err := s.notifier.Notify(p.Sender, p.Content); err != nil {
		s.logger.WithError(err).Warn("can't show message notification")
	}
}

func (s *Stream) unsubscribeLocked() {
	if s.sub == nil {
		return
	}
	if err := s.sub.Unsubscribe(); err != nil {
		s.logger.WithError(err).Warn("can't unsubscribe from conversation")
	}
	s.sub = nil
}

func copyMessages(messages []models.Message) []models.Message {
	if messages == nil {
		return []models.Message{}
	}
	return append([]models.Message(nil), messages...)
}
