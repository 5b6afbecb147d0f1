package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ticketchat/config"
	"ticketchat/logger"
)

var rootCmd = &cobra.Command{
	Use:   "ticketchat",
	Short: "Ticket conversation server and transcript client",
	Long: `ticketchat serves paginated ticket history and live message events,
and tails a ticket's transcript in the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd, tailCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
