// Package storagetest provides an in-memory storage.Registry for tests of
// code that sits on top of the storages package.
package storagetest

import (
	"context"
	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/practice-sem-2/chat-client/internal/models"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"sort"
	"strings"
	"sync"
	"time"
)

type state struct {
	profiles map[string]models.Profile
	groups   map[string]models.Group
	members  []models.GroupMember
	requests []models.ChatRequest
	messages []models.Message
}

func (s *state) clone() *state {
	c := &state{
		profiles: make(map[string]models.Profile, len(s.profiles)),
		groups:   make(map[string]models.Group, len(s.groups)),
		members:  append([]models.GroupMember(nil), s.members...),
		requests: append([]models.ChatRequest(nil), s.requests...),
		messages: append([]models.Message(nil), s.messages...),
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	return c
}

// Registry keeps every table in memory. Atomic scopes are serialized and
// roll the state back when the scoped function fails.
type Registry struct {
	txMu    sync.Mutex
	mu      sync.Mutex
	data    *state
	inTx    bool
	updates storage.UpdatesStore
	clock   time.Time
}

// NewRegistry returns an empty registry publishing insert notifications to
// updates. A nil updates store drops notifications.
func NewRegistry(updates storage.UpdatesStore) *Registry {
	if updates == nil {
		updates = discardUpdates{}
	}
	return &Registry{
		data: &state{
			profiles: make(map[string]models.Profile),
			groups:   make(map[string]models.Group),
		},
		updates: updates,
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick returns strictly increasing timestamps, like clock_timestamp().
func (r *Registry) tick() time.Time {
	r.clock = r.clock.Add(time.Millisecond)
	return r.clock
}

func (r *Registry) Atomic(_ context.Context, fn storage.AtomicFunc) (err error) {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := r.data.clone()
	r.inTx = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inTx = false
		r.mu.Unlock()
		if p := recover(); p != nil {
			r.restore(snapshot)
			panic(p)
		}
		if err != nil {
			r.restore(snapshot)
		}
	}()

	return fn(r)
}

func (r *Registry) restore(s *state) {
	r.mu.Lock()
	r.data = s
	r.mu.Unlock()
}

func (r *Registry) GetProfilesStore() storage.ProfilesStore {
	return profilesStore{r}
}

func (r *Registry) GetGroupsStore() storage.GroupsStore {
	return groupsStore{r}
}

func (r *Registry) GetRequestsStore() storage.RequestsStore {
	return requestsStore{r}
}

func (r *Registry) GetMessagesStore() storage.MessagesStore {
	return messagesStore{r}
}

func (r *Registry) GetUpdatesStore() storage.UpdatesStore {
	return r.updates
}

// InTransaction reports whether an Atomic scope is running.
func (r *Registry) InTransaction() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inTx
}

// Messages returns a copy of the messages table in insertion order.
func (r *Registry) Messages() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.data.messages...)
}

// Requests returns a copy of the chat_requests table in insertion order.
func (r *Registry) Requests() []models.ChatRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ChatRequest(nil), r.data.requests...)
}

// InsertRequest stores a request as is, which allows seeding duplicates.
func (r *Registry) InsertRequest(req models.ChatRequest) models.ChatRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = r.tick()
	}
	r.data.requests = append(r.data.requests, req)
	return req
}

type discardUpdates struct{}

func (discardUpdates) MessageInserted(*models.MessageInserted) error {
	return nil
}

type profilesStore struct{ r *Registry }

func (s profilesStore) CreateProfile(_ context.Context, profile *models.Profile) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.data.profiles[profile.ID]; ok {
		return storage.ErrProfileAlreadyExists
	}
	for _, p := range s.r.data.profiles {
		if p.Email == profile.Email {
			return storage.ErrProfileAlreadyExists
		}
	}

	p := *profile
	p.Status = p.Status.OrDefault()
	if p.AvatarColor == "" {
		p.AvatarColor = models.DefaultAvatarColor
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.r.tick()
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = p.CreatedAt
	}
	s.r.data.profiles[p.ID] = p
	return nil
}

func (s profilesStore) GetProfile(_ context.Context, userId string) (*models.Profile, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	p, ok := s.r.data.profiles[userId]
	if !ok {
		return nil, storage.ErrProfileNotFound
	}
	return &p, nil
}

func (s profilesStore) ListProfiles(_ context.Context, exceptUserId string) ([]models.Profile, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	profiles := make([]models.Profile, 0, len(s.r.data.profiles))
	for id, p := range s.r.data.profiles {
		if id != exceptUserId {
			profiles = append(profiles, p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].DisplayName < profiles[j].DisplayName
	})
	return profiles, nil
}

func (s profilesStore) UpdateStatus(ctx context.Context, userId string, status models.PresenceStatus) error {
	return s.update(userId, func(p *models.Profile) { p.Status = status })
}

func (s profilesStore) UpdateProfile(ctx context.Context, userId string, upd models.ProfileUpdate) error {
	if upd.DisplayName == nil && upd.AvatarColor == nil {
		return storage.ErrEmptyUpdate
	}
	return s.update(userId, func(p *models.Profile) {
		if upd.DisplayName != nil {
			p.DisplayName = *upd.DisplayName
		}
		if upd.AvatarColor != nil {
			p.AvatarColor = *upd.AvatarColor
		}
	})
}

func (s profilesStore) TouchLastSeen(ctx context.Context, userId string, at time.Time) error {
	return s.update(userId, func(p *models.Profile) { p.LastSeen = at.UTC() })
}

func (s profilesStore) update(userId string, fn func(p *models.Profile)) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	p, ok := s.r.data.profiles[userId]
	if !ok {
		return storage.ErrProfileNotFound
	}
	fn(&p)
	s.r.data.profiles[userId] = p
	return nil
}

type groupsStore struct{ r *Registry }

func (s groupsStore) CreateGroup(_ context.Context, group models.GroupCreate) (*models.Group, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.data.profiles[group.CreatedBy]; !ok {
		return nil, storage.ErrProfileNotFound
	}

	createdBy := group.CreatedBy
	g := models.Group{
		ID:        uuid.NewString(),
		Name:      group.Name,
		CreatedBy: &createdBy,
		CreatedAt: s.r.tick(),
	}
	s.r.data.groups[g.ID] = g
	return &g, nil
}

func (s groupsStore) AddGroupMember(_ context.Context, groupId string, userId string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.data.groups[groupId]; !ok {
		return storage.ErrGroupNotFound
	}
	if _, ok := s.r.data.profiles[userId]; !ok {
		return storage.ErrMemberNotExists
	}
	for _, m := range s.r.data.members {
		if m.GroupID == groupId && m.UserID == userId {
			return storage.ErrAlreadyAMember
		}
	}
	s.r.data.members = append(s.r.data.members, models.GroupMember{
		GroupID:  groupId,
		UserID:   userId,
		JoinedAt: s.r.tick(),
	})
	return nil
}

func (s groupsStore) GetUserGroups(_ context.Context, userId string) ([]models.Group, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	groups := make([]models.Group, 0)
	for _, m := range s.r.data.members {
		if m.UserID == userId {
			groups = append(groups, s.r.data.groups[m.GroupID])
		}
	}
	return groups, nil
}

type requestsStore struct{ r *Registry }

func (s requestsStore) CreateRequest(_ context.Context, senderId string, recipientId string) (*models.ChatRequest, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	_, senderOk := s.r.data.profiles[senderId]
	_, recipientOk := s.r.data.profiles[recipientId]
	if !senderOk || !recipientOk {
		return nil, storage.ErrProfileNotFound
	}

	req := models.ChatRequest{
		ID:          uuid.NewString(),
		SenderID:    senderId,
		RecipientID: recipientId,
		Status:      models.RequestPending,
		CreatedAt:   s.r.tick(),
	}
	s.r.data.requests = append(s.r.data.requests, req)
	return &req, nil
}

func (s requestsStore) GetLatestRequest(_ context.Context, userA string, userB string) (*models.ChatRequest, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	var latest *models.ChatRequest
	for i := range s.r.data.requests {
		req := s.r.data.requests[i]
		if !samePair(req.SenderID, req.RecipientID, userA, userB) {
			continue
		}
		if latest == nil || !req.CreatedAt.Before(latest.CreatedAt) {
			latest = &req
		}
	}
	if latest == nil {
		return nil, storage.ErrRequestNotFound
	}
	return latest, nil
}

func (s requestsStore) SetRequestStatus(_ context.Context, requestId string, recipientId string, status models.RequestStatus) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	for i, req := range s.r.data.requests {
		if req.ID == requestId && req.RecipientID == recipientId && req.Status == models.RequestPending {
			s.r.data.requests[i].Status = status
			return nil
		}
	}
	return storage.ErrRequestNotFound
}

type messagesStore struct{ r *Registry }

func (s messagesStore) PutMessage(_ context.Context, message *models.MessageSend) (*models.Message, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	if _, ok := s.r.data.profiles[message.SenderID]; !ok {
		return nil, storage.ErrProfileNotFound
	}
	if message.RecipientID != nil {
		if _, ok := s.r.data.profiles[*message.RecipientID]; !ok {
			return nil, storage.ErrProfileNotFound
		}
	}
	if message.GroupID != nil {
		if _, ok := s.r.data.groups[*message.GroupID]; !ok {
			return nil, storage.ErrGroupNotFound
		}
	}

	msg := models.Message{
		ID:          uuid.NewString(),
		SenderID:    message.SenderID,
		RecipientID: copyString(message.RecipientID),
		GroupID:     copyString(message.GroupID),
		Content:     message.Content,
		CreatedAt:   s.r.tick(),
	}
	s.r.data.messages = append(s.r.data.messages, msg)
	return &msg, nil
}

// SelectMessages supports the equality and disjunction selectors the
// storages package builds. Anything else matches nothing.
func (s messagesStore) SelectMessages(_ context.Context, selector sq.Sqlizer, options ...storage.SelectOptions) ([]models.Message, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	option := storage.SelectOptions{}
	if len(options) > 0 {
		option = options[0]
	}

	messages := make([]models.Message, 0)
	for _, m := range s.r.data.messages {
		if matches(selector, m) {
			messages = append(messages, m)
		}
	}

	desc := len(option.OrderBy) > 0 && strings.HasSuffix(strings.ToUpper(option.OrderBy[0]), "DESC")
	sort.SliceStable(messages, func(i, j int) bool {
		if desc {
			return messages[j].CreatedAt.Before(messages[i].CreatedAt)
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	if option.Limit > 0 && uint64(len(messages)) > option.Limit {
		messages = messages[:option.Limit]
	}
	return messages, nil
}

func (s messagesStore) GetDirectHistory(ctx context.Context, userA string, userB string) ([]models.Message, error) {
	return s.SelectMessages(ctx, sq.Or{
		sq.Eq{"sender_id": userA, "recipient_id": userB},
		sq.Eq{"sender_id": userB, "recipient_id": userA},
	})
}

func (s messagesStore) GetGroupHistory(ctx context.Context, groupId string) ([]models.Message, error) {
	return s.SelectMessages(ctx, sq.Eq{"group_id": groupId})
}

func (s messagesStore) MarkRead(_ context.Context, recipientId string, senderId string) (int64, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()

	var count int64
	for i, m := range s.r.data.messages {
		if m.SenderID == senderId && m.RecipientID != nil && *m.RecipientID == recipientId && !m.Read {
			s.r.data.messages[i].Read = true
			count++
		}
	}
	return count, nil
}

func matches(selector sq.Sqlizer, m models.Message) bool {
	switch sel := selector.(type) {
	case sq.Eq:
		for column, value := range sel {
			expected, ok := value.(string)
			actual := columnValue(column, m)
			if !ok || actual == nil || *actual != expected {
				return false
			}
		}
		return true
	case sq.Or:
		for _, part := range sel {
			if matches(part, m) {
				return true
			}
		}
		return false
	case sq.And:
		for _, part := range sel {
			if !matches(part, m) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func columnValue(column string, m models.Message) *string {
	switch column {
	case "id":
		return &m.ID
	case "sender_id":
		return &m.SenderID
	case "recipient_id":
		return m.RecipientID
	case "group_id":
		return m.GroupID
	case "content":
		return &m.Content
	default:
		return nil
	}
}

func samePair(sender, recipient, userA, userB string) bool {
	return (sender == userA && recipient == userB) || (sender == userB && recipient == userA)
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
