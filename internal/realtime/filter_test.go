package realtime

import (
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestFilter_Match(t *testing.T) {
	direct := models.Message{ID: "m1", SenderID: "u1", RecipientID: strPtr("u2")}
	group := models.Message{ID: "m2", SenderID: "u1", GroupID: strPtr("g1")}

	tests := []struct {
		name   string
		filter Filter
		msg    models.Message
		match  bool
	}{
		{"zero filter matches all", Filter{}, direct, true},
		{"sender", Eq("sender_id", "u1"), direct, true},
		{"other sender", Eq("sender_id", "u2"), direct, false},
		{"recipient", Eq("recipient_id", "u2"), direct, true},
		{"recipient on group message", Eq("recipient_id", "u2"), group, false},
		{"group", Eq("group_id", "g1"), group, true},
		{"group on direct message", Eq("group_id", "g1"), direct, false},
		{"unknown column", Eq("content", "x"), direct, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, tt.filter.Match(&tt.msg))
		})
	}
}

func TestFilter_String(t *testing.T) {
	assert.Equal(t, "sender_id=eq.u1", Eq("sender_id", "u1").String())
	assert.Equal(t, "*", Filter{}.String())
}
