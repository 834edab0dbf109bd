package realtime

import (
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func strPtr(s string) *string {
	return &s
}

func TestCodec_MessageInserted(t *testing.T) {
	created := time.Date(2024, 3, 10, 9, 30, 0, 123000, time.UTC)
	upd := models.MessageInserted{
		UpdateMeta: models.UpdateMeta{Timestamp: created.Add(time.Millisecond)},
		Message: models.Message{
			ID:          "9e0f4c39-8e51-4b53-a0a3-10a3e3a8cb0e",
			SenderID:    "253becbb-76b1-4471-9ff3-529462925899",
			RecipientID: strPtr("1230cadb-899e-4710-8cdd-0a2f83882712"),
			Content:     "hello",
			CreatedAt:   created,
		},
	}

	body, err := EncodeMessageInserted(&upd)
	require.NoError(t, err)

	env, err := Decode(body)
	require.NoError(t, err)
	assert.Equal(t, KindInsert, env.Kind)
	assert.Equal(t, models.TableMessages, env.Topic)
	assert.True(t, upd.Timestamp.Equal(env.SentAt))
	require.NotNil(t, env.Message)
	assert.Nil(t, env.Typing)
	assert.Equal(t, upd.Message, *env.Message)
	assert.Nil(t, env.Message.GroupID, "null group id should stay nil")
}

func TestCodec_Typing(t *testing.T) {
	evt := models.TypingEvent{
		UpdateMeta: models.UpdateMeta{Timestamp: time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)},
		SenderID:   "253becbb-76b1-4471-9ff3-529462925899",
		GroupID:    strPtr("694a909e-bec7-4dbe-bf38-935a99d848cc"),
	}

	body, err := EncodeTyping(&evt)
	require.NoError(t, err)

	env, err := Decode(body)
	require.NoError(t, err)
	require.NotNil(t, env.Typing)
	assert.Nil(t, env.Message)
	assert.Equal(t, evt, *env.Typing)
}

func TestCodec_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestConversationKey(t *testing.T) {
	a, b := "aaaa", "bbbb"
	forward := models.Message{SenderID: a, RecipientID: &b}
	backward := models.Message{SenderID: b, RecipientID: &a}
	assert.Equal(t, ConversationKey(&forward), ConversationKey(&backward))

	group := models.Message{SenderID: a, GroupID: strPtr("g")}
	assert.Equal(t, "g", ConversationKey(&group))
}
