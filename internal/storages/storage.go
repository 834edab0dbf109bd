package storage

import (
	"context"
	"database/sql"
	"fmt"
	sq "github.com/Masterminds/squirrel"
	"github.com/Shopify/sarama"
	"github.com/jmoiron/sqlx"
	"github.com/practice-sem-2/chat-client/internal/models"
	"time"
)

type AtomicFunc func(Registry) error

type Registry interface {
	Atomic(ctx context.Context, fn AtomicFunc) error
	GetProfilesStore() ProfilesStore
	GetGroupsStore() GroupsStore
	GetRequestsStore() RequestsStore
	GetMessagesStore() MessagesStore
	GetUpdatesStore() UpdatesStore
}

type ProfilesStore interface {
	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, userId string) (*models.Profile, error)
	ListProfiles(ctx context.Context, exceptUserId string) ([]models.Profile, error)
	UpdateStatus(ctx context.Context, userId string, status models.PresenceStatus) error
	UpdateProfile(ctx context.Context, userId string, upd models.ProfileUpdate) error
	TouchLastSeen(ctx context.Context, userId string, at time.Time) error
}

type GroupsStore interface {
	CreateGroup(ctx context.Context, group models.GroupCreate) (*models.Group, error)
	AddGroupMember(ctx context.Context, groupId string, userId string) error
	GetUserGroups(ctx context.Context, userId string) ([]models.Group, error)
}

type RequestsStore interface {
	CreateRequest(ctx context.Context, senderId string, recipientId string) (*models.ChatRequest, error)
	GetLatestRequest(ctx context.Context, userA string, userB string) (*models.ChatRequest, error)
	SetRequestStatus(ctx context.Context, requestId string, recipientId string, status models.RequestStatus) error
}

type MessagesStore interface {
	PutMessage(ctx context.Context, message *models.MessageSend) (*models.Message, error)
	SelectMessages(ctx context.Context, selector sq.Sqlizer, options ...SelectOptions) ([]models.Message, error)
	GetDirectHistory(ctx context.Context, userA string, userB string) ([]models.Message, error)
	GetGroupHistory(ctx context.Context, groupId string) ([]models.Message, error)
	MarkRead(ctx context.Context, recipientId string, senderId string) (int64, error)
}

type UpdatesStore interface {
	MessageInserted(upd *models.MessageInserted) error
}

type DefaultRegistry struct {
	db       *sqlx.DB
	scope    Scope
	producer sarama.SyncProducer
	cfg      *UpdatesStoreConfig
}

type Scope interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	sqlx.Execer
	sqlx.Queryer
	Get(dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
}

func NewRegistry(db *sqlx.DB, p sarama.SyncProducer, cfg *UpdatesStoreConfig) *DefaultRegistry {
	return &DefaultRegistry{
		db:       db,
		scope:    db,
		producer: p,
		cfg:      cfg,
	}
}

func (r *DefaultRegistry) Atomic(ctx context.Context, fn AtomicFunc) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("rollback caused by error: \"%v\" failed: %v", err, rbErr)
			}
		} else {
			err = tx.Commit()
		}
	}()

	storage := DefaultRegistry{
		db:       r.db,
		scope:    tx,
		producer: r.producer,
		cfg:      r.cfg,
	}
	err = fn(&storage)
	return err
}

func (r *DefaultRegistry) GetProfilesStore() ProfilesStore {
	return NewProfilesStorage(r.scope)
}

func (r *DefaultRegistry) GetGroupsStore() GroupsStore {
	return NewGroupsStorage(r.scope)
}

func (r *DefaultRegistry) GetRequestsStore() RequestsStore {
	return NewRequestsStorage(r.scope)
}

func (r *DefaultRegistry) GetMessagesStore() MessagesStore {
	return NewMessagesStorage(r.scope)
}

func (r *DefaultRegistry) GetUpdatesStore() UpdatesStore {
	return NewUpdatesStore(r.producer, r.cfg)
}
