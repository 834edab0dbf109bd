package main

import (
	"github.com/Shopify/sarama"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"os"
	"time"
)

func initLogger(level string) *logrus.Logger {

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{})

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.
			WithField("log_level", level).
			Warning("specified invalid log level")
	} else {
		logger.SetLevel(logLevel)
		logger.
			WithField("log_level", level).
			Debugf("specified %s log level", logLevel.String())
	}

	return logger
}

func initDB(dsn string, logger *logrus.Logger) *sqlx.DB {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		logger.Fatalf("can't connect to database: %s", err.Error())
	}

	err = db.Ping()

	if err != nil {
		logger.Fatalf("database ping failed: %s", err.Error())
	}

	logger.Info("successfully connected to database")
	return db
}

func kafkaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = "chat-client"
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Timeout = 10 * time.Second
	config.Producer.Return.Successes = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Offsets.AutoCommit.Enable = false
	config.Consumer.Return.Errors = true
	return config
}

func initProducer(brokers []string, logger *logrus.Logger) sarama.SyncProducer {
	producer, err := sarama.NewSyncProducer(brokers, kafkaConfig())

	if err != nil {
		logger.WithError(err).Fatalf("can't create producer")
	}

	return producer
}

func initConsumer(brokers []string, logger *logrus.Logger) sarama.Consumer {
	consumer, err := sarama.NewConsumer(brokers, kafkaConfig())

	if err != nil {
		logger.WithError(err).Fatalf("can't create consumer")
	}

	return consumer
}
