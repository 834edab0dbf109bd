package realtime

import (
	"context"
	"errors"
	"fmt"
	"github.com/Shopify/sarama"
	"github.com/practice-sem-2/chat-client/internal/models"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

var ErrNotStarted = errors.New("realtime channel is not started")

type KafkaConfig struct {
	MessagesTopic  string
	BroadcastTopic string
}

// KafkaChannel consumes insert notifications and broadcasts from Kafka and
// dispatches them to local subscribers. Consumption starts at the newest
// offset, so nothing published before Start is replayed.
type KafkaChannel struct {
	*dispatcher
	consumer sarama.Consumer
	producer sarama.SyncProducer
	cfg      *KafkaConfig
	logger   logrus.FieldLogger

	mu         sync.Mutex
	started    bool
	partitions []sarama.PartitionConsumer
	wg         sync.WaitGroup
}

func NewKafkaChannel(c sarama.Consumer, p sarama.SyncProducer, cfg *KafkaConfig, logger logrus.FieldLogger) *KafkaChannel {
	return &KafkaChannel{
		dispatcher: newDispatcher(),
		consumer:   c,
		producer:   p,
		cfg:        cfg,
		logger:     logger,
	}
}

func (c *KafkaChannel) Start(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	defer func() {
		if err != nil {
			c.closePartitions()
		}
	}()

	for _, topic := range []string{c.cfg.MessagesTopic, c.cfg.BroadcastTopic} {
		partitions, err := c.consumer.Partitions(topic)
		if err != nil {
			return fmt.Errorf("can't list partitions of %s: %w", topic, err)
		}

		for _, partition := range partitions {
			pc, err := c.consumer.ConsumePartition(topic, partition, sarama.OffsetNewest)
			if err != nil {
				return fmt.Errorf("can't consume %s/%d: %w", topic, partition, err)
			}
			c.partitions = append(c.partitions, pc)
			c.wg.Add(1)
			go c.consume(ctx, pc)
		}
	}

	c.started = true
	c.logger.
		WithField("partitions", len(c.partitions)).
		Info("realtime channel started")
	return nil
}

func (c *KafkaChannel) consume(ctx context.Context, pc sarama.PartitionConsumer) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pc.Messages():
			if !ok {
				return
			}
			env, err := Decode(msg.Value)
			if err != nil {
				c.logger.
					WithError(err).
					WithField("topic", msg.Topic).
					WithField("offset", msg.Offset).
					Warn("skipping undecodable realtime record")
				continue
			}
			c.deliver(env)
		case cErr, ok := <-pc.Errors():
			if !ok {
				return
			}
			c.logger.WithError(cErr).Error("realtime consumer error")
		}
	}
}

func (c *KafkaChannel) SubscribeInserts(filter Filter, fn InsertHandler) (Subscription, error) {
	if !c.isStarted() {
		return nil, ErrNotStarted
	}
	c.logger.WithField("filter", filter.String()).Debug("subscribing to message inserts")
	return c.addInsert(filter, fn), nil
}

func (c *KafkaChannel) SubscribeTyping(fn TypingHandler) (Subscription, error) {
	if !c.isStarted() {
		return nil, ErrNotStarted
	}
	return c.addTyping(fn), nil
}

func (c *KafkaChannel) BroadcastTyping(_ context.Context, evt *models.TypingEvent) error {
	e := *evt
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	bytes, err := EncodeTyping(&e)
	if err != nil {
		return err
	}

	_, _, err = c.producer.SendMessage(&sarama.ProducerMessage{
		Topic: c.cfg.BroadcastTopic,
		Key:   sarama.StringEncoder(e.SenderID),
		Value: sarama.ByteEncoder(bytes),
	})
	return err
}

func (c *KafkaChannel) isStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Close stops every partition consumer and waits for the dispatch loops to exit.
func (c *KafkaChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.closePartitions()
	c.started = false
	return err
}

func (c *KafkaChannel) closePartitions() error {
	var firstErr error
	for _, pc := range c.partitions {
		if err := pc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.partitions = nil
	c.wg.Wait()
	return firstErr
}
