package usecases

import (
	"context"
	"github.com/google/uuid"
	"github.com/practice-sem-2/chat-client/internal/models"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"strings"
	"time"
)

// Accounts provisions profiles and signs access tokens for them. It backs the
// development commands that stand in for the auth backend.
type Accounts struct {
	registry storage.Registry
	auth     *Authenticator
}

func NewAccounts(r storage.Registry, a *Authenticator) *Accounts {
	return &Accounts{
		registry: r,
		auth:     a,
	}
}

// Register creates a profile with a fresh id and returns it with an access token.
func (u *Accounts) Register(ctx context.Context, create models.ProfileCreate, ttl time.Duration) (*models.Profile, string, error) {
	create.Email = strings.TrimSpace(create.Email)
	create.DisplayName = strings.TrimSpace(create.DisplayName)
	if create.AvatarColor == "" {
		create.AvatarColor = models.DefaultAvatarColor
	}

	if err := validateStruct(create); err != nil {
		return nil, "", err
	}

	var profile *models.Profile
	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetProfilesStore()
		id := uuid.NewString()
		err := store.CreateProfile(ctx, &models.Profile{
			ID:          id,
			Email:       create.Email,
			DisplayName: create.DisplayName,
			AvatarColor: create.AvatarColor,
			Status:      models.StatusAvailable,
		})
		if err != nil {
			return err
		}
		profile, err = store.GetProfile(ctx, id)
		return err
	})

	if err != nil {
		return nil, "", err
	}

	token, err := u.auth.Issue(profile.ID, profile.Email, ttl)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

// IssueToken signs a token for an existing profile.
func (u *Accounts) IssueToken(ctx context.Context, userId string, ttl time.Duration) (string, error) {
	if !ValidateUUID(userId) {
		return "", ErrInvalidInput
	}

	profile, err := u.registry.GetProfilesStore().GetProfile(ctx, userId)
	if err != nil {
		return "", err
	}

	return u.auth.Issue(profile.ID, profile.Email, ttl)
}
