package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dogma165/push-notification/internal/api"
	"github.com/dogma165/push-notification/internal/config"
	"github.com/dogma165/push-notification/internal/eventbus"
	"github.com/dogma165/push-notification/internal/logger"
	"github.com/dogma165/push-notification/internal/metrics"
	"github.com/dogma165/push-notification/internal/scheduler"
	"github.com/dogma165/push-notification/internal/server"
	"github.com/dogma165/push-notification/internal/service"
	"github.com/dogma165/push-notification/internal/storage"
	"github.com/dogma165/push-notification/internal/webpush"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP push service",
	Long:  "Start the HTTP API server that manages subscriptions and delivers queued pushes.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides PORT env var)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Port = port
	}

	log, err := logger.New(filepath.Join(cfg.DataDir, "logs"), cfg.SlogLevel())
	if err != nil {
		return err
	}

	services, err := config.LoadServices(cfg.ServicesFile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("creating data directory %q: %w", cfg.DataDir, err)
	}
	db, applied, err := storage.NewSQLiteDB(filepath.Join(cfg.DataDir, "webpushd.db"))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if applied > 0 {
		log.Info("database migrated", "applied", applied)
	}

	bus := eventbus.New(0, log)
	defer bus.Close()

	m := metrics.New()
	bus.Subscribe(m.Listener())

	transport := webpush.NewHTTPTransport(time.Duration(cfg.RequestTimeout) * time.Second)
	sender := webpush.New(transport, webpush.NewClassifier(services.Services), log)

	pushSvc := service.NewPushService(
		storage.NewSQLiteSubscriptionStore(db),
		storage.NewSQLiteDeliveryStore(db),
		sender, bus, log,
	)
	if err := pushSvc.UpdateSettings(service.Settings{
		TTL:              cfg.TTL,
		AutomaticPadding: cfg.AutomaticPadding,
		APIKeys:          services.APIKeys,
	}); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.FlushInterval > 0 {
		sched, err := scheduler.New(pushSvc, time.Duration(cfg.FlushInterval)*time.Second, log)
		if err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return err
		}
		defer func() { _ = sched.Stop() }()
	}

	srv := server.New(api.New(pushSvc, log), m.Handler(), cfg.Port, log)

	fmt.Fprintf(os.Stderr, "webpushd listening on http://localhost:%d\n", cfg.Port)
	log.Info("server starting", "port", cfg.Port)
	return srv.Run(ctx)
}
