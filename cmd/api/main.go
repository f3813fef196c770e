package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-backoffice/internal/api"
	"github.com/example/ec-backoffice/internal/api/middleware"
	"github.com/example/ec-backoffice/internal/auth"
	"github.com/example/ec-backoffice/internal/command"
	"github.com/example/ec-backoffice/internal/config"
	"github.com/example/ec-backoffice/internal/event"
	"github.com/example/ec-backoffice/internal/infrastructure/kafka"
	"github.com/example/ec-backoffice/internal/infrastructure/store"
	"github.com/example/ec-backoffice/internal/lock"
	"github.com/example/ec-backoffice/internal/logger"
	"github.com/example/ec-backoffice/internal/projection"
	"github.com/example/ec-backoffice/internal/query"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
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

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, eventLog, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var publisher event.Publisher = projection.NewProjector(eventLog, log)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		log.Info("publishing to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		log.Info("kafka disabled, recording events in-process")
	}

	revocations, closeRevocations := openRevocations(cfg, log)
	defer closeRevocations()

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	cmdHandler := command.NewHandler(runner, publisher, revocations, log)
	queryHandler := query.NewHandler(runner)

	if cfg.Auth.AdminEmail != "" {
		if err := cmdHandler.SeedAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.AdminName); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	} else {
		log.Warn("auth.admin_email not set, no admin account is seeded")
	}

	var limiter *middleware.RateLimiter
	if cfg.Auth.LoginRatePerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.Auth.LoginRatePerSecond, max(cfg.Auth.LoginBurst, 1))
	}

	router := api.NewRouter(api.RouterDeps{
		Handlers:     api.NewHandlers(cmdHandler, queryHandler, log),
		AuthHandlers: api.NewAuthHandlers(cmdHandler, queryHandler, jwtService, revocations, log),
		JWTService:   jwtService,
		Revocations:  revocations,
		Logger:       log,

		CredentialLimiter: limiter,
	})

	server := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server started", zap.String("addr", cfg.App.HTTPAddr), zap.String("store", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Runner, store.EventLog, func(), error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(lock.NewKeyedLocker(cfg.Lock.Timeout)), store.NewMemoryEventLog(), func() {}, nil
	}

	db, err := store.ConnectPostgres(ctx, cfg.Database.DSN, store.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	pg := store.NewPostgresStore(db, cfg.Lock.Timeout)
	if err := pg.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	log.Info("connected to postgres")
	return pg, store.NewPostgresEventLog(db), closeDB(db, log), nil
}

func closeDB(db *sql.DB, log *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Warn("close postgres", zap.Error(err))
		}
	}
}

// openRevocations keeps revocations in Redis when configured so that every
// API instance sees the same revoked sessions.
func openRevocations(cfg *config.Config, log *zap.Logger) (auth.RevocationStore, func()) {
	if cfg.Redis.Addr == "" {
		log.Warn("redis not configured, session revocations are local to this process")
		return auth.NewMemoryRevocationStore(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return auth.NewRedisRevocationStore(client, cfg.Auth.RefreshTTL), func() {
		if err := client.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}
}
