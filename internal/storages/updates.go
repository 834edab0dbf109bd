package storage

import (
	"github.com/Shopify/sarama"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/practice-sem-2/chat-client/internal/realtime"
)

type UpdatesStorage struct {
	cfg      *UpdatesStoreConfig
	producer sarama.SyncProducer
}

type UpdatesStoreConfig struct {
	MessagesTopic string
}

func NewUpdatesStore(p sarama.SyncProducer, cfg *UpdatesStoreConfig) *UpdatesStorage {
	return &UpdatesStorage{
		producer: p,
		cfg:      cfg,
	}
}

func (s *UpdatesStorage) putUpdate(topic, key string, body []byte) error {
	_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	})

	return err
}

// MessageInserted publishes the insert notification for a freshly stored message.
// Records are keyed by conversation so a partition keeps per-conversation order.
func (s *UpdatesStorage) MessageInserted(upd *models.MessageInserted) error {
	body, err := realtime.EncodeMessageInserted(upd)
	if err != nil {
		return err
	}
	return s.putUpdate(s.cfg.MessagesTopic, realtime.ConversationKey(&upd.Message), body)
}
