package realtime

import (
	"context"
	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"sync"
	"testing"
	"time"
)

type KafkaChannelTestSuite struct {
	suite.Suite
	consumer *mocks.Consumer
	producer *mocks.SyncProducer
	channel  *KafkaChannel
	logs     *test.Hook
	cancel   context.CancelFunc
	messages *mocks.PartitionConsumer
}

func TestKafkaChannelTestSuite(t *testing.T) {
	suite.Run(t, &KafkaChannelTestSuite{})
}

func (s *KafkaChannelTestSuite) SetupTest() {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true

	s.consumer = mocks.NewConsumer(s.T(), config)
	s.consumer.SetTopicMetadata(map[string][]int32{
		"messages":         {0},
		"typing-indicator": {0},
	})
	s.messages = s.consumer.ExpectConsumePartition("messages", 0, sarama.OffsetNewest)
	s.consumer.ExpectConsumePartition("typing-indicator", 0, sarama.OffsetNewest)
	s.producer = mocks.NewSyncProducer(s.T(), config)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	s.logs = hook

	s.channel = NewKafkaChannel(s.consumer, s.producer, &KafkaConfig{
		MessagesTopic:  "messages",
		BroadcastTopic: "typing-indicator",
	}, logger)

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	require.NoError(s.T(), s.channel.Start(ctx))
}

func (s *KafkaChannelTestSuite) TearDownTest() {
	s.cancel()
	assert.NoError(s.T(), s.channel.Close())
	assert.NoError(s.T(), s.consumer.Close())
	assert.NoError(s.T(), s.producer.Close())
}

func (s *KafkaChannelTestSuite) Test_SubscribeRequiresStart() {
	idle := NewKafkaChannel(s.consumer, s.producer, &KafkaConfig{}, logrus.New())
	_, err := idle.SubscribeInserts(Filter{}, func(models.Message) {})
	assert.ErrorIs(s.T(), err, ErrNotStarted)
}

func (s *KafkaChannelTestSuite) Test_DeliversFilteredInserts() {
	var mu sync.Mutex
	var got []models.Message

	_, err := s.channel.SubscribeInserts(Eq("sender_id", "u2"), func(m models.Message) {
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
	})
	require.NoError(s.T(), err)

	for _, sender := range []string{"u3", "u2"} {
		body, err := EncodeMessageInserted(&models.MessageInserted{
			Message: models.Message{ID: "from-" + sender, SenderID: sender, RecipientID: strPtr("u1"), CreatedAt: time.Now().UTC()},
		})
		require.NoError(s.T(), err)
		s.messages.YieldMessage(&sarama.ConsumerMessage{Value: body})
	}

	assert.Eventually(s.T(), func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0].ID == "from-u2"
	}, time.Second, 10*time.Millisecond)
}

func (s *KafkaChannelTestSuite) Test_SkipsUndecodableRecords() {
	s.messages.YieldMessage(&sarama.ConsumerMessage{Topic: "messages", Value: []byte("not protobuf")})

	assert.Eventually(s.T(), func() bool {
		for _, e := range s.logs.AllEntries() {
			if e.Message == "skipping undecodable realtime record" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func (s *KafkaChannelTestSuite) Test_BroadcastTyping() {
	s.producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		env, err := Decode(val)
		if err != nil {
			return err
		}
		if env.Typing == nil || env.Typing.SenderID != "u1" {
			return assert.AnError
		}
		return nil
	})

	err := s.channel.BroadcastTyping(context.Background(), &models.TypingEvent{SenderID: "u1", RecipientID: strPtr("u2")})
	assert.NoError(s.T(), err)
}
