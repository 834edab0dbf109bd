package usecases

import (
	"context"
	"errors"
	"github.com/practice-sem-2/chat-client/internal/models"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"sync"
	"time"
)

var ErrNotSignedIn = errors.New("user is not signed in")

// Session holds the authenticated identity and the local copy of its profile.
type Session struct {
	registry storage.Registry
	auth     *Authenticator
	now      func() time.Time

	mu      sync.RWMutex
	claims  *Claims
	profile *models.Profile
}

func NewSession(r storage.Registry, a *Authenticator) *Session {
	return &Session{
		registry: r,
		auth:     a,
		now:      time.Now,
	}
}

func (s *Session) SignIn(ctx context.Context, accessToken string) (*models.Profile, error) {
	claims, err := s.auth.Verify(accessToken)
	if err != nil {
		return nil, err
	}

	store := s.registry.GetProfilesStore()
	now := s.now()
	if err = store.TouchLastSeen(ctx, claims.UserID(), now); err != nil {
		return nil, err
	}

	profile, err := store.GetProfile(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.claims = claims
	s.profile = profile
	s.mu.Unlock()

	return copyProfile(profile), nil
}

func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	claims := s.claims
	s.claims = nil
	s.profile = nil
	s.mu.Unlock()

	if claims == nil {
		return ErrNotSignedIn
	}

	return s.registry.GetProfilesStore().TouchLastSeen(ctx, claims.UserID(), s.now())
}

// UserID returns the signed in profile id or an empty string.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return ""
	}
	return s.claims.UserID()
}

func (s *Session) Profile() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyProfile(s.profile)
}

// SetProfile replaces the local copy without touching the store.
func (s *Session) SetProfile(p *models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = copyProfile(p)
}

// SetStatus persists the status first. Peers pick it up on their next roster load.
func (s *Session) SetStatus(ctx context.Context, status models.PresenceStatus) error {
	if _, err := models.ParsePresenceStatus(string(status)); err != nil {
		return err
	}

	userId := s.UserID()
	if userId == "" {
		return ErrNotSignedIn
	}

	err := s.registry.GetProfilesStore().UpdateStatus(ctx, userId, status)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.profile != nil {
		s.profile.Status = status
	}
	s.mu.Unlock()
	return nil
}

func (s *Session) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error) {
	userId := s.UserID()
	if userId == "" {
		return nil, ErrNotSignedIn
	}

	if err := validateStruct(upd); err != nil {
		return nil, err
	}

	var profile *models.Profile
	err := s.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetProfilesStore()
		if err := store.UpdateProfile(ctx, userId, upd); err != nil {
			return err
		}
		var err error
		profile, err = store.GetProfile(ctx, userId)
		return err
	})

	if err != nil {
		return nil, err
	}

	s.SetProfile(profile)
	return copyProfile(profile), nil
}

func copyProfile(p *models.Profile) *models.Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
