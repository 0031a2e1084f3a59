package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/richardliu001/smm-panel/internal/auth"
	"github.com/richardliu001/smm-panel/internal/config"
	"github.com/richardliu001/smm-panel/internal/lock"
	"github.com/richardliu001/smm-panel/internal/logger"
	"github.com/richardliu001/smm-panel/internal/provider"
	"github.com/richardliu001/smm-panel/internal/repo"
	"github.com/richardliu001/smm-panel/internal/service"
	httptransport "github.com/richardliu001/smm-panel/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "internal/config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(repo.Models()...); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis: balance cache and distributed user locks. Without it the
	// server falls back to in-process locks and must run as one replica.
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
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		locker = lock.NewRedisLocker(rdb, cfg.Lock.TTL, cfg.Lock.RetryInterval)
	} else {
		log.Warn("redis not configured, using in-process locks")
	}

	// 5. kafka writer
	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}
	defer kw.Close()

	// 6. repo, provider & service
	repository := repo.NewRepository(gdb, rdb, kw, log)
	smm := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout, log)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	svc := service.NewPanelService(repository, smm, locker, tokens, service.OptionsFromConfig(cfg), log)
	if err := svc.Bootstrap(ctx, service.BootstrapRequest{
		AdminEmail:    cfg.Bootstrap.AdminEmail,
		AdminPassword: cfg.Bootstrap.AdminPassword,
		AdminName:     cfg.Bootstrap.AdminName,
	}); err != nil {
		log.Fatalf("bootstrap accounts: %v", err)
	}

	// 7. gin router
	router := httptransport.NewRouter(svc, cfg.RateLimit, log)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 8. serve until signalled
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("panel-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Errorf("server: %v", err)
	}
}
