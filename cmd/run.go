package main

import (
	"context"
	"errors"
	"github.com/practice-sem-2/chat-client/internal/client"
	"github.com/practice-sem-2/chat-client/internal/config"
	"github.com/practice-sem-2/chat-client/internal/console"
	"github.com/practice-sem-2/chat-client/internal/notify"
	"github.com/practice-sem-2/chat-client/internal/realtime"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"github.com/practice-sem-2/chat-client/internal/usecases"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
)

var errNoToken = errors.New("access token is required, pass --token or set ACCESS_TOKEN")

func newRunCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := initLogger(logLevel)

			cfg, err := config.Load(viper.New(), configPath)
			if err != nil {
				return err
			}

			if token == "" {
				token = cfg.AccessToken
			}
			if token == "" {
				return errNoToken
			}

			return run(cmd.Context(), cfg, token, logger)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "access token issued by the auth backend")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, token string, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db := initDB(cfg.DatabaseDSN, logger)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Errorf("during db connection close an error occurred: %s", err.Error())
		}
	}()

	producer := initProducer(cfg.KafkaBrokers, logger)
	defer func() {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Error("can't close producer")
		}
	}()

	consumer := initConsumer(cfg.KafkaBrokers, logger)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.WithError(err).Error("can't close consumer")
		}
	}()

	channel := realtime.NewKafkaChannel(consumer, producer, &realtime.KafkaConfig{
		MessagesTopic:  cfg.MessagesTopic,
		BroadcastTopic: cfg.BroadcastTopic,
	}, logger)

	if err := channel.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := channel.Close(); err != nil {
			logger.WithError(err).Error("can't close realtime channel")
		}
	}()

	store := storage.NewRegistry(db, producer, &storage.UpdatesStoreConfig{
		MessagesTopic: cfg.MessagesTopic,
	})

	var notifier notify.Notifier = notify.Discard{}
	if cfg.Notifications {
		notifier = notify.NewDesktop("chat-client", logger)
	}

	chat := client.New(store, channel, usecases.NewAuthenticator(cfg.JWTSecret), notifier, &client.Config{
		TypingWindow:    cfg.TypingWindow,
		Notifications:   cfg.Notifications,
		NotificationTTL: cfg.NotificationTTL,
	}, logger)

	term := console.New(chat, os.Stdout, logger)

	if err := chat.Start(ctx, token); err != nil {
		return err
	}
	defer chat.Stop(context.Background())

	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(osSignal)

	go func(ctx context.Context) {
		select {
		case sig := <-osSignal:
			logger.Infof("%s caught. Gracefully shutdown", sig.String())
			cancel()
		case <-ctx.Done():
			return
		}
	}(ctx)

	return term.Run(ctx, os.Stdin)
}
