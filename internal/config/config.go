package config

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	DatabaseDSN     string        `validate:"required"`
	MigrationsDir   string        `validate:"required"`
	KafkaBrokers    []string      `validate:"required,min=1,dive,hostname_port"`
	MessagesTopic   string        `validate:"required"`
	BroadcastTopic  string        `validate:"required"`
	JWTSecret       string        `validate:"required"`
	AccessToken     string
	TypingWindow    time.Duration `validate:"gt=0"`
	Notifications   bool
	NotificationTTL time.Duration `validate:"gt=0"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("MIGRATIONS_DIR", "file://migrations")
	v.SetDefault("MESSAGES_TOPIC", "messages")
	v.SetDefault("BROADCAST_TOPIC", "typing-indicator")
	v.SetDefault("TYPING_WINDOW", 2*time.Second)
	v.SetDefault("NOTIFICATIONS", true)
	v.SetDefault("NOTIFICATION_TTL", 5*time.Second)
}

// Load reads configuration from the environment and, when path is not empty, from a config file.
// Environment variables take precedence over the file.
func Load(v *viper.Viper, path string) (*Config, error) {
	cfg, err := read(v, path)
	if err != nil {
		return nil, err
	}

	if err = validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// LoadDatabase is Load for commands that only talk to the database.
func LoadDatabase(v *viper.Viper, path string) (*Config, error) {
	return loadPartial(v, path, "DatabaseDSN", "MigrationsDir")
}

// LoadAccounts is Load for commands that manage profiles and sign tokens.
func LoadAccounts(v *viper.Viper, path string) (*Config, error) {
	return loadPartial(v, path, "DatabaseDSN", "JWTSecret")
}

func loadPartial(v *viper.Viper, path string, fields ...string) (*Config, error) {
	cfg, err := read(v, path)
	if err != nil {
		return nil, err
	}

	if err = validator.New().StructPartial(cfg, fields...); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

func read(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("can't read config file %s: %w", path, err)
		}
	}

	return &Config{
		DatabaseDSN:     v.GetString("DB_DSN"),
		MigrationsDir:   v.GetString("MIGRATIONS_DIR"),
		KafkaBrokers:    splitList(v.GetString("KAFKA_BROKERS")),
		MessagesTopic:   v.GetString("MESSAGES_TOPIC"),
		BroadcastTopic:  v.GetString("BROADCAST_TOPIC"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		AccessToken:     v.GetString("ACCESS_TOKEN"),
		TypingWindow:    v.GetDuration("TYPING_WINDOW"),
		Notifications:   v.GetBool("NOTIFICATIONS"),
		NotificationTTL: v.GetDuration("NOTIFICATION_TTL"),
	}, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
