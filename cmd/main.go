package main

import (
	"github.com/spf13/cobra"
	"os"
)

var (
	logLevel   string
	configPath string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chat-client",
		Short: "Terminal client for one-to-one and group chats",
		Long: `chat-client talks to the chat database and the realtime broker directly.
Start an interactive session with "chat-client run" after applying the schema
with "chat-client migrate up".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log", "info", "log level")
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional config file, environment variables take precedence")

	root.AddCommand(newRunCmd(), newMigrateCmd(), newRegisterCmd(), newTokenCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger := initLogger(logLevel)
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
