package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jason-s-yu/stranded/internal/console"
	"github.com/jason-s-yu/stranded/internal/difficulty"
)

var consoleName string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Play a single-player game in the terminal",
	Long: `Play alone on the island. Type an action each day, or "quit" to stop.
Quitting and dying both exit with status 0.`,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().StringVarP(&consoleName, "name", "n", "", "your survivor's name")
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	// Keep retries and fallbacks out of the story text.
	logger.SetOutput(cmd.ErrOrStderr())
	if logger.GetLevel() > logrus.WarnLevel {
		logger.SetLevel(logrus.WarnLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n, closeNarrator, err := newNarrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNarrator()

	g := console.NewGame(consoleName, n, difficulty.NewResolver(), retryPolicy(cfg), logger)
	return g.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
