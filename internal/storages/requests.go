package storage

import (
	"context"
	"errors"
	sq "github.com/Masterminds/squirrel"
	"github.com/practice-sem-2/chat-client/internal/models"
)

var (
	ErrRequestNotFound = errors.New("chat request does not exist or is already resolved")
)

const (
	ChatRequestsSenderIdForeignKey    = "chat_requests_sender_id_fkey"
	ChatRequestsRecipientIdForeignKey = "chat_requests_recipient_id_fkey"
)

type RequestsStorage struct {
	db Scope
}

func NewRequestsStorage(db Scope) *RequestsStorage {
	return &RequestsStorage{
		db: db,
	}
}

func pairSelector(userA string, userB string, first string, second string) sq.Or {
	return sq.Or{
		sq.Eq{first: userA, second: userB},
		sq.Eq{first: userB, second: userA},
	}
}

func (s *RequestsStorage) CreateRequest(ctx context.Context, senderId string, recipientId string) (*models.ChatRequest, error) {
	query, args, err := sq.Insert("chat_requests").
		Columns("sender_id", "recipient_id", "status").
		Values(senderId, recipientId, models.RequestPending).
		Suffix("RETURNING *").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	req := models.ChatRequest{}
	err = s.db.QueryRowxContext(ctx, query, args...).StructScan(&req)

	switch GetPgxConstraintName(err) {
	case ChatRequestsSenderIdForeignKey, ChatRequestsRecipientIdForeignKey:
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &req, nil
}

// GetLatestRequest returns the chronologically last request between two users in either direction.
// Duplicates are not prevented on insert, so the newest one is authoritative.
func (s *RequestsStorage) GetLatestRequest(ctx context.Context, userA string, userB string) (*models.ChatRequest, error) {
	query, args, err := sq.Select("*").
		From("chat_requests").
		Where(pairSelector(userA, userB, "sender_id", "recipient_id")).
		OrderBy("created_at ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	requests := make([]models.ChatRequest, 0)
	err = s.db.SelectContext(ctx, &requests, query, args...)
	if err != nil {
		return nil, err
	}

	if len(requests) == 0 {
		return nil, ErrRequestNotFound
	}

	latest := requests[len(requests)-1]
	return &latest, nil
}

// SetRequestStatus resolves a pending request. Only the recipient may do it and only once.
func (s *RequestsStorage) SetRequestStatus(ctx context.Context, requestId string, recipientId string, status models.RequestStatus) error {
	query, args, err := sq.Update("chat_requests").
		Set("status", status).
		Where(sq.Eq{
			"id":           requestId,
			"recipient_id": recipientId,
			"status":       models.RequestPending,
		}).
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
		return ErrRequestNotFound
	}

	return nil
}
