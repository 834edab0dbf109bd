// Package client is the explicit state store of the messaging client. Every
// user action enters through one Client method, which drives the usecases in
// order and publishes an Event when visible state changes.
package client

import (
	"context"
	"errors"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/practice-sem-2/chat-client/internal/notify"
	"github.com/practice-sem-2/chat-client/internal/realtime"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"github.com/practice-sem-2/chat-client/internal/usecases"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

type EventKind int

const (
	EventProfile EventKind = iota
	EventRoster
	EventSelection
	EventRequest
	EventMessages
	EventTyping
)

type Event struct {
	Kind     EventKind
	Messages []models.Message // set for EventMessages
}

type Observer func(Event)

type Config struct {
	TypingWindow    time.Duration
	Notifications   bool
	NotificationTTL time.Duration
}

type Client struct {
	session  *usecases.Session
	roster   *usecases.Roster
	selector *usecases.Selector
	gate     *usecases.Gate
	stream   *usecases.Stream
	typing   *usecases.Typing
	composer *usecases.Composer
	logger   logrus.FieldLogger

	mu         sync.Mutex
	generation uint64
	users      []models.Profile
	groups     []models.Group
	observers  []Observer
}

func New(r storage.Registry, ch realtime.Channel, auth *usecases.Authenticator, n notify.Notifier, cfg *Config, logger logrus.FieldLogger) *Client {
	gate := usecases.NewGate(r)
	c := &Client{
		session:  usecases.NewSession(r, auth),
		roster:   usecases.NewRoster(r),
		selector: usecases.NewSelector(),
		gate:     gate,
		stream: usecases.NewStream(r, ch, n, &usecases.StreamConfig{
			Notifications:   cfg.Notifications,
			NotificationTTL: cfg.NotificationTTL,
		}, logger),
		typing:   usecases.NewTyping(ch, cfg.TypingWindow, logger),
		composer: usecases.NewComposer(r, gate, logger),
		logger:   logger,
	}

	c.stream.SetSenderNames(c.DisplayName)
	c.stream.OnChange(func(messages []models.Message) {
		c.emit(Event{Kind: EventMessages, Messages: messages})
	})
	c.typing.OnChange(func() {
		c.emit(Event{Kind: EventTyping})
	})
	return c
}

// OnEvent registers an observer. Observers may be called from realtime goroutines.
func (c *Client) OnEvent(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Start signs in and loads the roster. A failed sign-in is returned, roster
// failures are only logged.
func (c *Client) Start(ctx context.Context, accessToken string) error {
	profile, err := c.session.SignIn(ctx, accessToken)
	if err != nil {
		c.logger.WithError(err).Error("can't sign in")
		return err
	}

	c.logger.
		WithField("user_id", profile.ID).
		Info("signed in")

	c.emit(Event{Kind: EventProfile})
	c.Refresh(ctx)
	return nil
}

// Stop tears down conversation subscriptions and signs out.
func (c *Client) Stop(ctx context.Context) {
	c.bumpGeneration()
	c.stream.Close()
	c.typing.Close()
	c.gate.Reset()
	c.selector.Clear()

	if err := c.session.SignOut(ctx); err != nil && !errors.Is(err, usecases.ErrNotSignedIn) {
		c.logger.WithError(err).Error("can't sign out")
	}
}

// Refresh reloads users and groups.
func (c *Client) Refresh(ctx context.Context) {
	me := c.session.UserID()
	if me == "" {
		c.logger.Warn("roster refresh requires a signed in user")
		return
	}

	users, err := c.roster.LoadUsers(ctx, me)
	if err != nil {
		c.logger.WithError(err).Error("can't load users")
	}

	groups, err := c.roster.LoadGroups(ctx, me)
	if err != nil {
		c.logger.WithError(err).Error("can't load groups")
	}

	c.mu.Lock()
	if users != nil {
		c.users = users
	}
	if groups != nil {
		c.groups = groups
	}
	c.mu.Unlock()

	c.emit(Event{Kind: EventRoster})
}

func (c *Client) Profile() *models.Profile {
	return c.session.Profile()
}

func (c *Client) Users() []models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Profile(nil), c.users...)
}

func (c *Client) Groups() []models.Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Group(nil), c.groups...)
}

// Search filters the loaded users by display name or email.
func (c *Client) Search(term string) []models.Profile {
	return usecases.FilterProfiles(c.Users(), term)
}

// DisplayName resolves a profile id against the roster and the own profile.
func (c *Client) DisplayName(userId string) string {
	if p := c.session.Profile(); p != nil && p.ID == userId {
		return p.DisplayName
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.users {
		if u.ID == userId {
			return u.DisplayName
		}
	}
	return userId
}

func (c *Client) SelectUser(ctx context.Context, userId string) {
	var user *models.Profile
	c.mu.Lock()
	for i := range c.users {
		if c.users[i].ID == userId {
			u := c.users[i]
			user = &u
			break
		}
	}
	c.mu.Unlock()

	if user == nil {
		c.logger.
			WithField("user_id", userId).
			Warn("can't select unknown user")
		return
	}

	c.selector.SelectUser(*user)
	c.openConversation(ctx, models.DirectConversation(user.ID))
}

func (c *Client) SelectGroup(ctx context.Context, groupId string) {
	var group *models.Group
	c.mu.Lock()
	for i := range c.groups {
		if c.groups[i].ID == groupId {
			g := c.groups[i]
			group = &g
			break
		}
	}
	c.mu.Unlock()

	if group == nil {
		c.logger.
			WithField("group_id", groupId).
			Warn("can't select unknown group")
		return
	}

	c.selector.SelectGroup(*group)
	c.openConversation(ctx, models.GroupConversation(group.ID))
}

// Selection returns the selected user or group. At most one is non-nil.
func (c *Client) Selection() (*models.Profile, *models.Group) {
	return c.selector.User(), c.selector.Group()
}

func (c *Client) openConversation(ctx context.Context, target models.Conversation) {
	gen := c.bumpGeneration()
	me := c.session.UserID()
	log := c.logger.
		WithField("user_id", target.UserID).
		WithField("group_id", target.GroupID)

	c.emit(Event{Kind: EventSelection})

	if target.IsGroup() {
		c.gate.Reset()
	} else if _, err := c.gate.Load(ctx, me, target.UserID); err != nil {
		log.WithError(err).Error("can't load chat request")
	} else if c.isCurrent(gen) {
		c.emit(Event{Kind: EventRequest})
	}

	if err := c.typing.Watch(me, target); err != nil {
		log.WithError(err).Error("can't watch typing events")
	}

	if err := c.stream.Subscribe(me, target); err != nil {
		log.WithError(err).Error("can't subscribe to conversation")
		return
	}

	_, err := c.stream.Load(ctx)
	if errors.Is(err, usecases.ErrStaleLoad) {
		log.Debug("discarded stale history")
		return
	} else if err != nil {
		log.WithError(err).Error("can't load messages")
		return
	}

	if target.IsGroup() || !c.isCurrent(gen) {
		return
	}

	if _, err = c.stream.MarkRead(ctx); err != nil {
		log.WithError(err).Error("can't mark messages as read")
	}
}

func (c *Client) Messages() []models.Message {
	return c.stream.Messages()
}

func (c *Client) Request() *models.ChatRequest {
	return c.gate.Request()
}

func (c *Client) Popup() *usecases.Popup {
	return c.stream.Popup()
}

func (c *Client) IsTyping() bool {
	return c.typing.IsTyping()
}

func (c *Client) OtherTyping() bool {
	return c.typing.OtherTyping()
}

// Keystroke stores the draft and announces typing to the conversation.
func (c *Client) Keystroke(ctx context.Context, draft string) {
	c.composer.SetDraft(draft)
	if err := c.typing.Keystroke(ctx); err != nil {
		c.logger.WithError(err).Warn("can't broadcast typing")
	}
}

// Send submits the draft. Unlike other actions its failure is returned so the
// caller can alert the user.
func (c *Client) Send(ctx context.Context) (usecases.SendResult, error) {
	me := c.session.UserID()
	if me == "" {
		return usecases.SendResult{}, usecases.ErrNotSignedIn
	}

	before := c.gate.Request()
	res, err := c.composer.Submit(ctx, me, c.selector.Conversation())
	if err != nil {
		c.logger.WithError(err).Error("can't send message")
		return res, err
	}

	if requestChanged(before, c.gate.Request()) {
		c.emit(Event{Kind: EventRequest})
	}
	if res.Decision == usecases.GateOpen && res.Message != nil {
		c.stream.Append(*res.Message)
	}
	return res, nil
}

func requestChanged(before, after *models.ChatRequest) bool {
	switch {
	case before == nil || after == nil:
		return before != after
	default:
		return before.ID != after.ID || before.Status != after.Status
	}
}

func (c *Client) AcceptRequest(ctx context.Context) {
	c.resolveRequest(ctx, c.gate.Accept, "accept")
}

func (c *Client) RejectRequest(ctx context.Context) {
	c.resolveRequest(ctx, c.gate.Reject, "reject")
}

func (c *Client) resolveRequest(ctx context.Context, fn func(context.Context, string) error, action string) {
	if err := fn(ctx, c.session.UserID()); err != nil {
		c.logger.
			WithError(err).
			WithField("action", action).
			Error("can't answer chat request")
		return
	}
	c.emit(Event{Kind: EventRequest})
}

func (c *Client) SetStatus(ctx context.Context, status models.PresenceStatus) {
	if err := c.session.SetStatus(ctx, status); err != nil {
		c.logger.WithError(err).Error("can't update status")
		return
	}
	c.emit(Event{Kind: EventProfile})
}

// UpdateProfile changes the display fields of the signed in user. Peers see
// them on their next roster load.
func (c *Client) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) {
	if _, err := c.session.UpdateProfile(ctx, upd); err != nil {
		c.logger.WithError(err).Error("can't update profile")
		return
	}
	c.emit(Event{Kind: EventProfile})
}

// CreateGroup creates a group owned by the signed in user and reloads the groups.
func (c *Client) CreateGroup(ctx context.Context, name string) {
	me := c.session.UserID()
	group, err := c.roster.CreateGroup(ctx, me, name)
	if err != nil {
		c.logger.WithError(err).Error("can't create group")
		return
	}

	c.logger.
		WithField("group_id", group.ID).
		Info("group created")

	groups, err := c.roster.LoadGroups(ctx, me)
	if err != nil {
		c.logger.WithError(err).Error("can't load groups")
		return
	}

	c.mu.Lock()
	c.groups = groups
	c.mu.Unlock()
	c.emit(Event{Kind: EventRoster})
}

func (c *Client) bumpGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

func (c *Client) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

func (c *Client) emit(e Event) {
	c.mu.Lock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, o := range observers {
		o(e)
	}
}
