// Command stranded runs the room server, the single-player console game and
// the chronicle historian.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jason-s-yu/stranded/internal/config"
	"github.com/jason-s-yu/stranded/internal/narrator"
	"github.com/jason-s-yu/stranded/internal/resolution"
	"github.com/jason-s-yu/stranded/internal/worldmap"
)

var v = config.New()

var rootCmd = &cobra.Command{
	Use:   "stranded",
	Short: "Stranded survival story server",
	Long: `Stranded is a party survival game: phones join a room, a shared screen
shows the island, and a narrator model resolves each day.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("gemini-model", "gemini-2.5-flash", "Gemini model used for narration")
	flags.String("redis-addr", "", "Redis address for the day chronicle; empty disables it")
	// Bound flags override the environment and the defaults.
	cobra.CheckErr(v.BindPFlag("log_level", flags.Lookup("log-level")))
	cobra.CheckErr(v.BindPFlag("gemini_model", flags.Lookup("gemini-model")))
	cobra.CheckErr(v.BindPFlag("redis_addr", flags.Lookup("redis-addr")))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(historianCmd)
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger(), nil
}

// newNarrator picks the Gemini backend when a key is configured and the
// offline backend otherwise. The returned func releases the client.
func newNarrator(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*narrator.Narrator, func(), error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("No Gemini API key configured; every generation falls back")
		return narrator.New(narrator.OfflineCompleter{}, logger), func() {}, nil
	}
	gc, err := narrator.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, err
	}
	return narrator.New(gc, logger), func() { gc.Close() }, nil
}

func loadMap(cfg *config.Config) (*worldmap.Map, error) {
	if cfg.MapFile == "" {
		return worldmap.Default()
	}
	return worldmap.Load(cfg.MapFile)
}

func retryPolicy(cfg *config.Config) resolution.RetryPolicy {
	return resolution.RetryPolicy{
		Attempts:       cfg.ResolutionAttempts,
		Backoff:        cfg.ResolutionBackoff,
		AttemptTimeout: cfg.ResolutionTimeout,
		Sleep:          resolution.SleepContext,
	}
}
