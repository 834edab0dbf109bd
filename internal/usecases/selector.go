package usecases

import (
	"github.com/practice-sem-2/chat-client/internal/models"
	"sync"
)

// Selector tracks the active conversation target. A user and a group are
// never selected at the same time.
type Selector struct {
	mu    sync.RWMutex
	user  *models.Profile
	group *models.Group
}

func NewSelector() *Selector {
	return &Selector{}
}

func (s *Selector) SelectUser(user models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
	s.group = nil
}

func (s *Selector) SelectGroup(group models.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = &group
	s.user = nil
}

func (s *Selector) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.group = nil
}

func (s *Selector) User() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Selector) Group() *models.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.group == nil {
		return nil
	}
	g := *s.group
	return &g
}

func (s *Selector) Conversation() models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.user != nil:
		return models.DirectConversation(s.user.ID)
	case s.group != nil:
		return models.GroupConversation(s.group.ID)
	default:
		return models.Conversation{}
	}
}
