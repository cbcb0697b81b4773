package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jason-s-yu/stranded/internal/chronicle"
	"github.com/jason-s-yu/stranded/internal/database"
	"github.com/jason-s-yu/stranded/internal/historian"
)

var historianCmd = &cobra.Command{
	Use:   "historian",
	Short: "Archive the day chronicle from Redis into Postgres",
	RunE:  runHistorian,
}

func init() {
	historianCmd.Flags().String("database-url", "", "Postgres connection URL")
	historianCmd.Flags().Int("batch-size", 20, "records per insert transaction")
	cobra.CheckErr(v.BindPFlag("database_url", historianCmd.Flags().Lookup("database-url")))
	cobra.CheckErr(v.BindPFlag("historian_batch_size", historianCmd.Flags().Lookup("batch-size")))
}

func runHistorian(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		return fmt.Errorf("historian needs both redis_addr and database_url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := chronicle.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := database.NewChronicleStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	svc := historian.NewService(rdb, store, historian.Options{
		Queue:      cfg.ChronicleQueue,
		BatchSize:  cfg.HistorianBatchSize,
		FlushDelay: cfg.HistorianFlush,
	}, logger)
	logger.Infof("Historian archiving %s into Postgres", cfg.ChronicleQueue)
	return svc.Run(ctx)
}
