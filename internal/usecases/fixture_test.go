package usecases

import (
	"context"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/practice-sem-2/chat-client/internal/realtime"
	"github.com/practice-sem-2/chat-client/internal/storages/storagetest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"time"
)

const (
	aliceId = "74cccd17-9c56-490b-b721-88c027976863"
	bobId   = "67f85047-09d0-42a2-a5ee-9ce8db28cb07"
	carolId = "253becbb-76b1-4471-9ff3-529462925899"

	testSecret = "test-secret"
)

// MemoryTestSuite runs usecases against the in-memory registry and hub.
type MemoryTestSuite struct {
	suite.Suite
	hub      *realtime.Hub
	registry *storagetest.Registry
	logger   logrus.FieldLogger
	hook     *test.Hook
	ctx      context.Context
}

func (s *MemoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.hub = realtime.NewHub()
	s.registry = storagetest.NewRegistry(s.hub)
	logger, hook := test.NewNullLogger()
	s.logger, s.hook = logger, hook

	profiles := []models.Profile{
		{ID: aliceId, Email: "alice@example.com", DisplayName: "Alice"},
		{ID: bobId, Email: "bob@example.com", DisplayName: "Bob"},
		{ID: carolId, Email: "carol@example.com", DisplayName: "Carol"},
	}
	store := s.registry.GetProfilesStore()
	for i := range profiles {
		require.NoError(s.T(), store.CreateProfile(s.ctx, &profiles[i]))
	}
}

func (s *MemoryTestSuite) streamConfig() *StreamConfig {
	return &StreamConfig{
		Notifications:   true,
		NotificationTTL: 50 * time.Millisecond,
	}
}

// putDirect puts a message straight into the store, bypassing the gate.
func (s *MemoryTestSuite) putDirect(from, to, content string) models.Message {
	msg, err := s.registry.GetMessagesStore().PutMessage(s.ctx, &models.MessageSend{
		SenderID:    from,
		RecipientID: &to,
		Content:     content,
	})
	require.NoError(s.T(), err)
	return *msg
}

func (s *MemoryTestSuite) accept(sender, recipient string) {
	s.registry.InsertRequest(models.ChatRequest{
		SenderID:    sender,
		RecipientID: recipient,
		Status:      models.RequestAccepted,
	})
}
