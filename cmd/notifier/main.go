package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-backoffice/internal/config"
	"github.com/example/ec-backoffice/internal/email"
	"github.com/example/ec-backoffice/internal/infrastructure/kafka"
	"github.com/example/ec-backoffice/internal/infrastructure/store"
	"github.com/example/ec-backoffice/internal/logger"
	"github.com/example/ec-backoffice/internal/notification"
	"github.com/example/ec-backoffice/internal/query"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "notifier: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	// Claims and members are read back from the shared database.
	if !cfg.Kafka.Enabled || cfg.Database.Driver != "postgres" {
		return errors.New("the notifier needs kafka.enabled=true and the postgres driver")
	}

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.ConnectPostgres(ctx, cfg.Database.DSN, store.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	queries := query.NewHandler(store.NewPostgresStore(db, cfg.Lock.Timeout))
	sender := email.NewSMTPSender(cfg.Notifier.SMTPHost, cfg.Notifier.SMTPPort, cfg.Notifier.From)
	handler := notification.NewHandler(sender, queries, log)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Notifier.GroupID, log)
	defer consumer.Close()

	log.Info("notifier started",
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group_id", cfg.Notifier.GroupID),
		zap.String("smtp_host", cfg.Notifier.SMTPHost),
	)

	err = consumer.Consume(ctx, handler.HandleEvent)
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}
