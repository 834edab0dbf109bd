package notify

import (
	"errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

type recorder struct {
	titles   []string
	messages []string
	err      error
}

func (r *recorder) notify(title, message string, _ any) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func withRecorder(t *testing.T, r *recorder) {
	orig := notifyFunc
	notifyFunc = r.notify
	t.Cleanup(func() { notifyFunc = orig })
}

func TestDesktop_Notify(t *testing.T) {
	rec := &recorder{}
	withRecorder(t, rec)
	logger, _ := test.NewNullLogger()

	d := NewDesktop("chat-client", logger)
	require.NoError(t, d.Notify("Bob", "hello"))
	require.NoError(t, d.Notify("", "no title"))

	assert.Equal(t, []string{"Bob", "chat-client"}, rec.titles)
	assert.Equal(t, []string{"hello", "no title"}, rec.messages)
}

func TestDesktop_NotifyError(t *testing.T) {
	rec := &recorder{err: errors.New("dbus unavailable")}
	withRecorder(t, rec)
	logger, hook := test.NewNullLogger()

	err := NewDesktop("chat-client", logger).Notify("Bob", "hello")
	assert.Error(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "can't send desktop notification", hook.LastEntry().Message)
}

func TestDiscard(t *testing.T) {
	var n Notifier = Discard{}
	assert.NoError(t, n.Notify("a", "b"))
}
