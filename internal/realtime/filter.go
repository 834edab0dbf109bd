package realtime

import "github.com/practice-sem-2/chat-client/internal/models"

// Filter is an equality predicate on a messages column, the same shape as a
// `column=eq.value` change-feed filter. The zero Filter matches every row.
type Filter struct {
	Column string
	Value  string
}

func Eq(column, value string) Filter {
	return Filter{Column: column, Value: value}
}

func (f Filter) Match(m *models.Message) bool {
	switch f.Column {
	case "":
		return true
	case "id":
		return m.ID == f.Value
	case "sender_id":
		return m.SenderID == f.Value
	case "recipient_id":
		return m.RecipientID != nil && *m.RecipientID == f.Value
	case "group_id":
		return m.GroupID != nil && *m.GroupID == f.Value
	default:
		return false
	}
}

func (f Filter) String() string {
	if f.Column == "" {
		return "*"
	}
	return f.Column + "=eq." + f.Value
}
