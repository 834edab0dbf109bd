package storage

import (
	"context"
	sq "github.com/Masterminds/squirrel"
	"github.com/practice-sem-2/chat-client/internal/models"
)

const (
	MessagesSenderIdForeignKey    = "messages_sender_id_fkey"
	MessagesRecipientIdForeignKey = "messages_recipient_id_fkey"
	MessagesGroupIdForeignKey     = "messages_group_id_fkey"
)

type MessagesStorage struct {
	db Scope
}

func NewMessagesStorage(db Scope) *MessagesStorage {
	return &MessagesStorage{
		db: db,
	}
}

func (s *MessagesStorage) PutMessage(ctx context.Context, message *models.MessageSend) (*models.Message, error) {
	query, args, err := sq.Insert("messages").
		Columns("sender_id", "recipient_id", "group_id", "content").
		Values(message.SenderID, message.RecipientID, message.GroupID, message.Content).
		Suffix("RETURNING *").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	msg := models.Message{}
	err = s.db.QueryRowxContext(ctx, query, args...).StructScan(&msg)

	if GetPgxConstraintName(err) == MessagesGroupIdForeignKey {
		return nil, ErrGroupNotFound
	} else if name := GetPgxConstraintName(err); name == MessagesSenderIdForeignKey || name == MessagesRecipientIdForeignKey {
		return nil, ErrProfileNotFound
	} else if err != nil {
		return nil, err
	}

	return &msg, nil
}

type SelectOptions struct {
	Limit   uint64
	OrderBy []string
}

func (s *MessagesStorage) SelectMessages(ctx context.Context, selector sq.Sqlizer, options ...SelectOptions) ([]models.Message, error) {
	option := SelectOptions{}
	if len(options) > 0 {
		option = options[0]
	}

	builder := sq.Select("*").
		From("messages").
		Where(selector).
		PlaceholderFormat(sq.Dollar)

	if len(option.OrderBy) > 0 {
		builder = builder.OrderBy(option.OrderBy...)
	}

	if option.Limit > 0 {
		builder = builder.Limit(option.Limit)
	}

	query, args, err := builder.ToSql()

	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)

	for rows.Next() {
		msg := models.Message{}
		if err = rows.StructScan(&msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// GetDirectHistory returns the whole one-to-one conversation in either direction, oldest first.
func (s *MessagesStorage) GetDirectHistory(ctx context.Context, userA string, userB string) ([]models.Message, error) {
	return s.SelectMessages(ctx, pairSelector(userA, userB, "sender_id", "recipient_id"), SelectOptions{
		OrderBy: []string{"created_at ASC"},
	})
}

func (s *MessagesStorage) GetGroupHistory(ctx context.Context, groupId string) ([]models.Message, error) {
	return s.SelectMessages(ctx, sq.Eq{"group_id": groupId}, SelectOptions{
		OrderBy: []string{"created_at ASC"},
	})
}

// MarkRead flips the read flag of unread messages the sender addressed to the recipient.
func (s *MessagesStorage) MarkRead(ctx context.Context, recipientId string, senderId string) (int64, error) {
	query, args, err := sq.Update("messages").
		Set("read", true).
		Where(sq.Eq{
			"recipient_id": recipientId,
			"sender_id":    senderId,
			"read":         false,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
