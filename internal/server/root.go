package server

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Users and posts CRUD API",
	Long:  `A JSON API over PostgreSQL using chi for routing, pgx for storage and cobra for CLI`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer()
	},
}

func startServer() error {
	config, err := LoadConfig(envFile)
	if err != nil {
		newLogger(os.Stderr, "info").Error("failed to load configuration", "error", err)
		return err
	}

	logger := newLogger(os.Stdout, config.LogLevel)
	slog.SetDefault(logger)

	server, err := NewServer(config, logger)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		return err
	}
	return server.Start()
}
