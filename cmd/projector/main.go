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
	"github.com/example/ec-backoffice/internal/infrastructure/kafka"
	"github.com/example/ec-backoffice/internal/infrastructure/store"
	"github.com/example/ec-backoffice/internal/logger"
	"github.com/example/ec-backoffice/internal/projection"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "projector: %v\n", err)
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
	if !cfg.Kafka.Enabled {
		return errors.New("the projector needs kafka.enabled=true")
	}

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var eventLog store.EventLog
	switch cfg.Database.Driver {
	case "postgres":
		db, err := store.ConnectPostgres(ctx, cfg.Database.DSN, store.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if err := store.NewPostgresStore(db, cfg.Lock.Timeout).Init(ctx); err != nil {
			return err
		}
		eventLog = store.NewPostgresEventLog(db)
	default:
		log.Warn("using in-memory event log, recorded events are lost on restart")
		eventLog = store.NewMemoryEventLog()
	}

	projector := projection.NewProjector(eventLog, log)
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("projector started",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group_id", cfg.Kafka.GroupID),
	)

	err = consumer.Consume(ctx, projector.HandleEvent)
	if errors.Is(err, context.Canceled) {
		log.Info("shutting down")
		return nil
	}
	return err
}
