package storage

import (
	"context"
	"fmt"
	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/practice-sem-2/chat-client/internal/realtime"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string {
	return &s
}

func TestUpdatesStorage_MessageInserted_Mock(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, config)
	defer func() {
		assert.NoError(t, producer.Close())
	}()

	msg := models.Message{
		ID:          "67f85047-09d0-42a2-a5ee-9ce8db28cb07",
		SenderID:    "253becbb-76b1-4471-9ff3-529462925899",
		RecipientID: strPtr("1230cadb-899e-4710-8cdd-0a2f83882712"),
		Content:     "hello",
		CreatedAt:   time.Now().UTC(),
	}

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		env, err := realtime.Decode(val)
		if err != nil {
			return err
		}
		if env.Message == nil || env.Message.ID != msg.ID {
			return fmt.Errorf("unexpected payload %+v", env)
		}
		return nil
	})

	store := NewUpdatesStore(producer, &UpdatesStoreConfig{MessagesTopic: "messages"})
	err := store.MessageInserted(&models.MessageInserted{Message: msg})
	assert.NoError(t, err)
}

type EventsTestSuite struct {
	suite.Suite
	p sarama.SyncProducer
	c sarama.Consumer
}

func (s *EventsTestSuite) TearDownSuite() {
	if s.p != nil {
		err := s.p.Close()
		require.NoError(s.T(), err, "Sarama producer should be closed correctly")
	}
	if s.c != nil {
		err := s.c.Close()
		require.NoError(s.T(), err, "Sarama consumer should be closed correctly")
	}
}

func (s *EventsTestSuite) SetupSuite() {
	viper.AutomaticEnv()
	brokers := viper.GetString("KAFKA_BROKERS")

	if len(brokers) == 0 {
		s.T().Skip("KAFKA_BROKERS is not defined")
	}

	addrs := strings.Split(brokers, ",")
	config := sarama.NewConfig()
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Timeout = 10 * time.Second
	config.Producer.Return.Successes = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Offsets.AutoCommit.Enable = false

	var err error
	s.p, err = sarama.NewSyncProducer(addrs, config)
	require.NoError(s.T(), err, fmt.Sprintf("can't create kafka producer: %v", err))

	s.c, err = sarama.NewConsumer(addrs, config)
	require.NoError(s.T(), err, fmt.Sprintf("can't create kafka consumer: %v", err))
}

func TestEventsSuite(t *testing.T) {
	suite.Run(t, &EventsTestSuite{})
}

func (s *EventsTestSuite) Test_EventsStorage_MessageInserted() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	consumer, err := s.c.ConsumePartition("test", 0, sarama.OffsetNewest)
	require.NoError(s.T(), err, "create consume partition")
	defer consumer.Close()

	update := models.MessageInserted{
		UpdateMeta: models.UpdateMeta{
			Timestamp: time.Now().UTC(),
		},
		Message: models.Message{
			ID:        "67f85047-09d0-42a2-a5ee-9ce8db28cb07",
			SenderID:  "253becbb-76b1-4471-9ff3-529462925899",
			GroupID:   strPtr("256e3354-8263-4913-8bdd-345bd04d962e"),
			Content:   "hi all",
			CreatedAt: time.Now().UTC(),
		},
	}
	store := NewUpdatesStore(s.p, &UpdatesStoreConfig{MessagesTopic: "test"})
	err = store.MessageInserted(&update)
	assert.NoError(s.T(), err, "event should be pushed without error")

	select {
	case msg := <-consumer.Messages():
		env, err := realtime.Decode(msg.Value)
		require.NoError(s.T(), err)

		assert.Equal(s.T(), *update.Message.GroupID, string(msg.Key))
		require.NotNil(s.T(), env.Message)
		assert.Equal(s.T(), update.Message.ID, env.Message.ID)
	case <-ctx.Done():
		assert.FailNow(s.T(), "Timeout")
	}
}
