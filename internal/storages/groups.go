package storage

import (
	"context"
	"errors"
	sq "github.com/Masterminds/squirrel"
	"github.com/practice-sem-2/chat-client/internal/models"
)

var (
	ErrGroupNotFound   = errors.New("group with provided group_id does not exist")
	ErrAlreadyAMember  = errors.New("user is already a group member")
	ErrMemberNotExists = errors.New("user with provided user_id does not exist")
)

const (
	GroupsCreatedByForeignKey     = "groups_created_by_fkey"
	GroupMembersPrimaryKey        = "group_members_pkey"
	GroupMembersGroupIdForeignKey = "group_members_group_id_fkey"
	GroupMembersUserIdForeignKey  = "group_members_user_id_fkey"
)

type GroupsStorage struct {
	db Scope
}

func NewGroupsStorage(db Scope) *GroupsStorage {
	return &GroupsStorage{
		db: db,
	}
}

func (s *GroupsStorage) CreateGroup(ctx context.Context, group models.GroupCreate) (*models.Group, error) {
	query, args, err := sq.Insert("groups").
		Columns("name", "created_by").
		Values(group.Name, group.CreatedBy).
		Suffix("RETURNING *").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	created := models.Group{}
	err = s.db.QueryRowxContext(ctx, query, args...).StructScan(&created)

	if GetPgxConstraintName(err) == GroupsCreatedByForeignKey {
		return nil, ErrProfileNotFound
	} else if err != nil {
		return nil, err
	}

	return &created, nil
}

func (s *GroupsStorage) AddGroupMember(ctx context.Context, groupId string, userId string) error {
	query, args, err := sq.Insert("group_members").
		Columns("group_id", "user_id").
		Values(groupId, userId).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case GroupMembersPrimaryKey:
		return ErrAlreadyAMember
	case GroupMembersGroupIdForeignKey:
		return ErrGroupNotFound
	case GroupMembersUserIdForeignKey:
		return ErrMemberNotExists
	default:
		return err
	}
}

// GetUserGroups returns the groups the user joined, oldest membership first.
func (s *GroupsStorage) GetUserGroups(ctx context.Context, userId string) ([]models.Group, error) {
	query, args, err := sq.Select("g.id", "g.name", "g.created_by", "g.created_at").
		From("groups g").
		Join("group_members m ON m.group_id = g.id").
		Where(sq.Eq{"m.user_id": userId}).
		OrderBy("m.joined_at", "g.name").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	groups := make([]models.Group, 0)
	err = s.db.SelectContext(ctx, &groups, query, args...)
	if err != nil {
		return nil, err
	}

	return groups, nil
}
