package usecases

import (
	"context"
	"fmt"
	"github.com/practice-sem-2/chat-client/internal/models"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"strings"
)

// Roster loads the people and groups the signed in user can talk to.
type Roster struct {
	registry storage.Registry
}

func NewRoster(r storage.Registry) *Roster {
	return &Roster{
		registry: r,
	}
}

func (u *Roster) LoadUsers(ctx context.Context, me string) ([]models.Profile, error) {
	return u.registry.GetProfilesStore().ListProfiles(ctx, me)
}

func (u *Roster) LoadGroups(ctx context.Context, me string) ([]models.Group, error) {
	return u.registry.GetGroupsStore().GetUserGroups(ctx, me)
}

// CreateGroup creates a group together with the creator membership.
func (u *Roster) CreateGroup(ctx context.Context, me string, name string) (group *models.Group, err error) {
	create := models.GroupCreate{
		Name:      strings.TrimSpace(name),
		CreatedBy: me,
	}

	if create.Name == "" {
		return nil, fmt.Errorf("%w: group name is empty", ErrInvalidInput)
	}

	if err = validateStruct(create); err != nil {
		return nil, err
	}

	err = u.registry.Atomic(ctx, func(r storage.Registry) error {
		store := r.GetGroupsStore()
		var err error
		group, err = store.CreateGroup(ctx, create)
		if err != nil {
			return err
		}
		return store.AddGroupMember(ctx, group.ID, me)
	})

	if err != nil {
		return nil, err
	}
	return group, nil
}

// FilterProfiles keeps profiles whose display name or email contains term, ignoring case.
func FilterProfiles(users []models.Profile, term string) []models.Profile {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return users
	}

	filtered := make([]models.Profile, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.DisplayName), term) ||
			strings.Contains(strings.ToLower(u.Email), term) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
