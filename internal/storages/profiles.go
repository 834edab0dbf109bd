package storage

import (
	"context"
	"database/sql"
	"errors"
	sq "github.com/Masterminds/squirrel"
	"github.com/practice-sem-2/chat-client/internal/models"
	"time"
)

var (
	ErrProfileNotFound      = errors.New("profile with provided id does not exist")
	ErrProfileAlreadyExists = errors.New("profile with provided id or email already exists")
	ErrEmptyUpdate          = errors.New("update does not change any field")
)

const (
	ProfilesPrimaryKey = "profiles_pkey"
	ProfilesEmailKey   = "profiles_email_key"
)

type ProfilesStorage struct {
	db Scope
}

func NewProfilesStorage(db Scope) *ProfilesStorage {
	return &ProfilesStorage{
		db: db,
	}
}

// CreateProfile stores a profile produced by registration. Zero timestamps are filled by the database.
func (s *ProfilesStorage) CreateProfile(ctx context.Context, profile *models.Profile) error {
	columns := []string{"id", "email", "display_name", "avatar_color", "status"}
	values := []interface{}{profile.ID, profile.Email, profile.DisplayName, profile.AvatarColor, profile.Status.OrDefault()}

	if !profile.CreatedAt.IsZero() {
		columns = append(columns, "created_at")
		values = append(values, profile.CreatedAt.UTC())
	}
	if !profile.LastSeen.IsZero() {
		columns = append(columns, "last_seen")
		values = append(values, profile.LastSeen.UTC())
	}

	query, args, err := sq.Insert("profiles").
		Columns(columns...).
		Values(values...).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	switch GetPgxConstraintName(err) {
	case ProfilesPrimaryKey, ProfilesEmailKey:
		return ErrProfileAlreadyExists
	default:
		return err
	}
}

func (s *ProfilesStorage) GetProfile(ctx context.Context, userId string) (*models.Profile, error) {
	query, args, err := sq.Select("*").
		From("profiles").
		Where(sq.Eq{"id": userId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	profile := models.Profile{}
	err = s.db.GetContext(ctx, &profile, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	} else if err != nil {
		return nil, err
	} else {
		return &profile, nil
	}
}

// ListProfiles returns every profile except the given one ordered by display name.
func (s *ProfilesStorage) ListProfiles(ctx context.Context, exceptUserId string) ([]models.Profile, error) {
	query, args, err := sq.Select("*").
		From("profiles").
		Where(sq.NotEq{"id": exceptUserId}).
		OrderBy("display_name").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	profiles := make([]models.Profile, 0)
	err = s.db.SelectContext(ctx, &profiles, query, args...)
	if err != nil {
		return nil, err
	}

	return profiles, nil
}

func (s *ProfilesStorage) UpdateStatus(ctx context.Context, userId string, status models.PresenceStatus) error {
	return s.update(ctx, userId, map[string]interface{}{"status": status})
}

func (s *ProfilesStorage) UpdateProfile(ctx context.Context, userId string, upd models.ProfileUpdate) error {
	fields := map[string]interface{}{}
	if upd.DisplayName != nil {
		fields["display_name"] = *upd.DisplayName
	}
	if upd.AvatarColor != nil {
		fields["avatar_color"] = *upd.AvatarColor
	}
	if len(fields) == 0 {
		return ErrEmptyUpdate
	}
	return s.update(ctx, userId, fields)
}

func (s *ProfilesStorage) TouchLastSeen(ctx context.Context, userId string, at time.Time) error {
	return s.update(ctx, userId, map[string]interface{}{"last_seen": at.UTC()})
}

func (s *ProfilesStorage) update(ctx context.Context, userId string, fields map[string]interface{}) error {
	query, args, err := sq.Update("profiles").
		SetMap(fields).
		Where(sq.Eq{"id": userId}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	count, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if count == 0 {
		return ErrProfileNotFound
	}

	return nil
}
