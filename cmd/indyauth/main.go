package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/indykite/indykite-sdk-web-sub001/pkg/prettylog"
)

var rootCmd = &cobra.Command{
	Use:   "indyauth",
	Short: "Drive authentication conversations from the terminal",
}

func main() {
	godotenv.Load()
	if os.Getenv("PRETTY_LOGS") != "false" {
		logger := slog.New(prettylog.NewHandler(logLevel()))
		slog.SetDefault(logger)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
