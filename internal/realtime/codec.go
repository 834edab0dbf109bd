package realtime

import (
	"errors"
	"fmt"
	"github.com/practice-sem-2/chat-client/internal/models"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"time"
)

var ErrMalformedEnvelope = errors.New("malformed realtime envelope")

const (
	KindInsert    = "insert"
	KindBroadcast = "broadcast"
)

// Envelope is the decoded form of a record travelling on the realtime channel.
// Exactly one of Message and Typing is set.
type Envelope struct {
	Kind    string
	Topic   string // table name for inserts, event name for broadcasts
	SentAt  time.Time
	Message *models.Message
	Typing  *models.TypingEvent
}

func EncodeMessageInserted(upd *models.MessageInserted) ([]byte, error) {
	m := upd.Message
	return encode(KindInsert, models.TableMessages, upd.Timestamp, map[string]*structpb.Value{
		"id":           structpb.NewStringValue(m.ID),
		"sender_id":    structpb.NewStringValue(m.SenderID),
		"recipient_id": nullableString(m.RecipientID),
		"group_id":     nullableString(m.GroupID),
		"content":      structpb.NewStringValue(m.Content),
		"created_at":   structpb.NewStringValue(m.CreatedAt.UTC().Format(time.RFC3339Nano)),
		"read":         structpb.NewBoolValue(m.Read),
	})
}

func EncodeTyping(evt *models.TypingEvent) ([]byte, error) {
	return encode(KindBroadcast, models.EventTyping, evt.Timestamp, map[string]*structpb.Value{
		"sender_id":    structpb.NewStringValue(evt.SenderID),
		"recipient_id": nullableString(evt.RecipientID),
		"group_id":     nullableString(evt.GroupID),
	})
}

func encode(kind, topic string, at time.Time, payload map[string]*structpb.Value) ([]byte, error) {
	env := &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"kind":    structpb.NewStringValue(kind),
			"topic":   structpb.NewStringValue(topic),
			"sent_at": structpb.NewStringValue(at.UTC().Format(time.RFC3339Nano)),
			"payload": structpb.NewStructValue(&structpb.Struct{Fields: payload}),
		},
	}
	return proto.Marshal(env)
}

func Decode(data []byte) (*Envelope, error) {
	raw := &structpb.Struct{}
	if err := proto.Unmarshal(data, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	fields := raw.GetFields()
	env := &Envelope{
		Kind:  fields["kind"].GetStringValue(),
		Topic: fields["topic"].GetStringValue(),
	}

	var err error
	if env.SentAt, err = parseTime(fields["sent_at"]); err != nil {
		return nil, err
	}

	payload := fields["payload"].GetStructValue().GetFields()
	if payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedEnvelope)
	}

	switch {
	case env.Kind == KindInsert && env.Topic == models.TableMessages:
		createdAt, err := parseTime(payload["created_at"])
		if err != nil {
			return nil, err
		}
		env.Message = &models.Message{
			ID:          payload["id"].GetStringValue(),
			SenderID:    payload["sender_id"].GetStringValue(),
			RecipientID: optionalString(payload["recipient_id"]),
			GroupID:     optionalString(payload["group_id"]),
			Content:     payload["content"].GetStringValue(),
			CreatedAt:   createdAt,
			Read:        payload["read"].GetBoolValue(),
		}
	case env.Kind == KindBroadcast && env.Topic == models.EventTyping:
		env.Typing = &models.TypingEvent{
			UpdateMeta:  models.UpdateMeta{Timestamp: env.SentAt},
			SenderID:    payload["sender_id"].GetStringValue(),
			RecipientID: optionalString(payload["recipient_id"]),
			GroupID:     optionalString(payload["group_id"]),
		}
	default:
		return nil, fmt.Errorf("%w: unsupported %s %q", ErrMalformedEnvelope, env.Kind, env.Topic)
	}

	return env, nil
}

func nullableString(s *string) *structpb.Value {
	if s == nil {
		return structpb.NewNullValue()
	}
	return structpb.NewStringValue(*s)
}

func optionalString(v *structpb.Value) *string {
	if v == nil {
		return nil
	}
	if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
		return nil
	}
	s := v.GetStringValue()
	return &s
}

func parseTime(v *structpb.Value) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v.GetStringValue())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return t, nil
}

// ConversationKey partitions notifications so one conversation keeps a single ordering.
func ConversationKey(m *models.Message) string {
	if m.GroupID != nil {
		return *m.GroupID
	}
	a, b := m.SenderID, ""
	if m.RecipientID != nil {
		b = *m.RecipientID
	}
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}
