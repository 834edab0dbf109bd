package main

import (
	"context"
	"fmt"
	"github.com/practice-sem-2/chat-client/internal/config"
	"github.com/practice-sem-2/chat-client/internal/models"
	storage "github.com/practice-sem-2/chat-client/internal/storages"
	"github.com/practice-sem-2/chat-client/internal/usecases"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

// Accounts never publish updates, so the registry gets no producer.
func withAccounts(ctx context.Context, logger *logrus.Logger, fn func(ctx context.Context, accounts *usecases.Accounts) error) error {
	cfg, err := config.LoadAccounts(viper.New(), configPath)
	if err != nil {
		return err
	}

	db := initDB(cfg.DatabaseDSN, logger)
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("can't close database connection")
		}
	}()

	registry := storage.NewRegistry(db, nil, &storage.UpdatesStoreConfig{})
	return fn(ctx, usecases.NewAccounts(registry, usecases.NewAuthenticator(cfg.JWTSecret)))
}

func newRegisterCmd() *cobra.Command {
	var (
		create models.ProfileCreate
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a profile and print an access token for it (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := initLogger(logLevel)
			return withAccounts(cmd.Context(), logger, func(ctx context.Context, accounts *usecases.Accounts) error {
				profile, token, err := accounts.Register(ctx, create, ttl)
				if err != nil {
					return err
				}

				logger.
					WithField("user_id", profile.ID).
					Info("profile registered")
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&create.Email, "email", "", "email of the new profile")
	cmd.Flags().StringVar(&create.DisplayName, "name", "", "display name of the new profile")
	cmd.Flags().StringVar(&create.AvatarColor, "color", "", "avatar color, e.g. #3b82f6")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Print an access token for an existing profile (development only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := initLogger(logLevel)
			return withAccounts(cmd.Context(), logger, func(ctx context.Context, accounts *usecases.Accounts) error {
				token, err := accounts.IssueToken(ctx, args[0], ttl)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
