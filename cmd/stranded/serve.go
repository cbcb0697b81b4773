package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jason-s-yu/stranded/internal/chronicle"
	"github.com/jason-s-yu/stranded/internal/config"
	"github.com/jason-s-yu/stranded/internal/handlers"
	"github.com/jason-s-yu/stranded/internal/resolution"
	"github.com/jason-s-yu/stranded/internal/room"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the room server",
	Long:  `Serve the websocket gateway and the room HTTP endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP port")
	serveCmd.Flags().String("map-file", "", "YAML island map; empty uses the built-in island")
	cobra.CheckErr(v.BindPFlag("port", serveCmd.Flags().Lookup("port")))
	cobra.CheckErr(v.BindPFlag("map_file", serveCmd.Flags().Lookup("map-file")))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := loadMap(cfg)
	if err != nil {
		return err
	}
	n, closeNarrator, err := newNarrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNarrator()

	pub, closePublisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	rules := room.DefaultRules()
	store := room.NewRoomStore(func(code string) *room.Room {
		return room.NewRoom(code, m, rules, logger)
	}, logger)
	pipeline := resolution.NewPipeline(n, retryPolicy(cfg), pub, logger)
	rs := handlers.NewRoomServer(ctx, store, pipeline, logger)

	srv := &http.Server{
		Handler:           rs.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	logger.WithFields(logrus.Fields{"addr": l.Addr().String(), "map": m.Name}).Info("Stranded server listening")

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.WithField("rooms", store.Len()).Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newPublisher returns the Redis chronicle publisher when an address is set.
func newPublisher(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (chronicle.Publisher, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("No Redis address configured; day chronicle disabled")
		return chronicle.NopPublisher{}, func() {}, nil
	}
	rdb, err := chronicle.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("Publishing day chronicle to %s (%s)", cfg.RedisAddr, cfg.ChronicleQueue)
	return chronicle.NewRedisPublisher(rdb, cfg.ChronicleQueue), func() { rdb.Close() }, nil
}
