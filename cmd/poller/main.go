package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/richardliu001/smm-panel/internal/auth"
	"github.com/richardliu001/smm-panel/internal/config"
	"github.com/richardliu001/smm-panel/internal/lock"
	"github.com/richardliu001/smm-panel/internal/logger"
	"github.com/richardliu001/smm-panel/internal/provider"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/richardliu001/smm-panel/internal/service"
	"github.com/richardliu001/smm-panel/internal/worker"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "internal/config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal("kafka.brokers is required for the poller")
	}

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	var (
		rdb    *redis.Client
		locker lock.Locker = lock.NewLocalLocker()
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = lock.NewRedisLocker(rdb, cfg.Lock.TTL, cfg.Lock.RetryInterval)
	} else {
		log.Warn("redis not configured, order sync uses in-process locks")
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}
	defer kw.Close()

	repository := repo.NewRepository(gdb, rdb, kw, log)
	smm := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout, log)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	svc := service.NewPanelService(repository, smm, locker, tokens, service.OptionsFromConfig(cfg), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("panel-poller started")
	p := worker.NewPoller(repository, svc, cfg.Poller.BatchSize, log)
	if err := p.Run(ctx, cfg.Poller.Interval, cfg.Poller.SyncInterval); err != nil {
		log.Errorf("poller: %v", err)
	}
	log.Info("panel-poller stopped")
}
