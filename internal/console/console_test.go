package console

import (
	"bytes"
	"context"
	"github.com/practice-sem-2/chat-client/internal/client"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/practice-sem-2/chat-client/internal/realtime"
	"github.com/practice-sem-2/chat-client/internal/storages/storagetest"
	"github.com/practice-sem-2/chat-client/internal/usecases"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/suite"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	aliceId = "74cccd17-9c56-490b-b721-88c027976863"
	bobId   = "67f85047-09d0-42a2-a5ee-9ce8db28cb07"
	carolId = "253becbb-76b1-4471-9ff3-529462925899"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type terminal struct {
	client  *client.Client
	console *Console
	out     *syncBuffer
}

type ConsoleTestSuite struct {
	suite.Suite
	ctx   context.Context
	alice *terminal
	bob   *terminal
}

func TestConsoleTestSuite(t *testing.T) {
	suite.Run(t, new(ConsoleTestSuite))
}

func (s *ConsoleTestSuite) SetupTest() {
	s.ctx = context.Background()
	hub := realtime.NewHub()
	registry := storagetest.NewRegistry(hub)
	auth := usecases.NewAuthenticator("test-secret")

	for _, p := range []models.Profile{
		{ID: aliceId, Email: "alice@example.com", DisplayName: "Alice"},
		{ID: bobId, Email: "bob@example.com", DisplayName: "Bob"},
		{ID: carolId, Email: "carol@example.com", DisplayName: "Carol"},
	} {
		p := p
		s.Require().NoError(registry.GetProfilesStore().CreateProfile(s.ctx, &p))
	}

	logger, _ := test.NewNullLogger()
	open := func(userId string) *terminal {
		c := client.New(registry, hub, auth, nil, &client.Config{
			TypingWindow:    50 * time.Millisecond,
			Notifications:   true,
			NotificationTTL: time.Second,
		}, logger)
		out := &syncBuffer{}
		con := New(c, out, logger)

		token, err := auth.Issue(userId, "", time.Minute)
		s.Require().NoError(err)
		s.Require().NoError(c.Start(s.ctx, token))
		return &terminal{client: c, console: con, out: out}
	}

	s.alice = open(aliceId)
	s.bob = open(bobId)
}

func (s *ConsoleTestSuite) TearDownTest() {
	s.alice.client.Stop(s.ctx)
	s.bob.client.Stop(s.ctx)
}

func (s *ConsoleTestSuite) run(t *terminal, lines ...string) string {
	t.out.Reset()
	for _, line := range lines {
		s.False(t.console.Execute(s.ctx, line))
	}
	return t.out.String()
}

func (s *ConsoleTestSuite) Test_Users() {
	out := s.run(s.alice, "/users")
	s.Contains(out, " 1. Bob <bob@example.com> [Available]")
	s.Contains(out, " 2. Carol <carol@example.com> [Available]")

	out = s.run(s.alice, "/search CAR")
	s.Contains(out, " 1. Carol")
	s.NotContains(out, "Bob")

	out = s.run(s.alice, "/search zed")
	s.Contains(out, "nobody found")
}

func (s *ConsoleTestSuite) Test_HandshakeFlow() {
	out := s.run(s.alice, "/user 1", "hi")
	s.Contains(out, "--- Bob")
	s.Contains(out, "* chat request sent")

	out = s.run(s.alice, "still there?")
	s.Contains(out, "* waiting for the chat request to be accepted")

	out = s.run(s.bob, "/user "+aliceId)
	s.Contains(out, "--- Alice")
	s.Contains(out, "* Alice wants to chat, /accept or /reject")

	out = s.run(s.bob, "/accept")
	s.Contains(out, "* chat request accepted")

	out = s.run(s.alice, "hello")
	s.Contains(out, "* chat request accepted", "alice learns about the accept on her next send")
	s.Contains(out, "Alice: hello")
	s.Contains(s.bob.out.String(), "Alice: hello")
	s.Contains(s.bob.out.String(), "(!) Alice: hello", "bob gets a pop-up")
}

func (s *ConsoleTestSuite) Test_Typing() {
	s.run(s.bob, "/user 1")
	s.run(s.alice, "/user 1")
	s.bob.out.Reset()

	s.alice.client.Keystroke(s.ctx, "h")
	s.Contains(s.bob.out.String(), "... Alice is typing")
}

func (s *ConsoleTestSuite) Test_Groups() {
	out := s.run(s.alice, "/groups")
	s.Contains(out, "no groups yet")

	s.run(s.alice, "/newgroup Book club")
	out = s.run(s.alice, "/groups")
	s.Contains(out, " 1. #Book club")

	out = s.run(s.alice, "/group 1", "welcome")
	s.Contains(out, "--- #Book club ---")
	s.Equal(1, strings.Count(out, "Alice: welcome"), "own echo is printed once")
}

func (s *ConsoleTestSuite) Test_Status() {
	out := s.run(s.alice, "/status do not disturb")
	s.Contains(out, "* Alice is Do not disturb")

	out = s.run(s.alice, "/status sleeping")
	s.Contains(out, "choose one of: Available, Busy")
}

func (s *ConsoleTestSuite) Test_Profile() {
	out := s.run(s.alice, "/name Alice Liddell", "/color #ff8800", "/who")
	s.Contains(out, "* Alice Liddell is Available")
	s.Contains(out, "* Alice Liddell <alice@example.com> [Available] #ff8800")

	out = s.run(s.alice, "/color orange", "/who")
	s.Contains(out, "[Available] #ff8800", "invalid color is not stored")

	out = s.run(s.alice, "/name", "/color")
	s.Contains(out, "! display name is required")
	s.Contains(out, "! color is required")

	out = s.run(s.bob, "/users")
	s.Contains(out, "Alice Liddell <alice@example.com>")
}

func (s *ConsoleTestSuite) Test_Errors() {
	out := s.run(s.alice, "/user 9", "/user bob", "/group 1", "/newgroup", "/dance", "hello")
	s.Contains(out, `! unknown user "9"`)
	s.Contains(out, `! unknown user "bob"`)
	s.Contains(out, `! unknown group "1"`)
	s.Contains(out, "! group name is required")
	s.Contains(out, "! unknown command /dance")
	s.Contains(out, "! message not sent: "+usecases.ErrNoConversation.Error())
}

func (s *ConsoleTestSuite) Test_Who() {
	out := s.run(s.alice, "/who")
	s.Contains(out, "* Alice <alice@example.com> [Available] #3b82f6, talking to: no conversation")
}

func (s *ConsoleTestSuite) Test_RunStopsOnQuit() {
	s.alice.out.Reset()
	err := s.alice.console.Run(s.ctx, strings.NewReader("/who\n/quit\n/users\n"))
	s.Require().NoError(err)

	out := s.alice.out.String()
	s.Contains(out, "commands:")
	s.Contains(out, "talking to: no conversation")
	s.NotContains(out, "1. Bob")
}

func (s *ConsoleTestSuite) Test_RunStopsOnEOF() {
	err := s.alice.console.Run(s.ctx, strings.NewReader("/who"))
	s.NoError(err)
}
