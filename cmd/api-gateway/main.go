// Package main 是应用程序入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/dumeirei/storefront-backend/internal/common/cache"
	"github.com/dumeirei/storefront-backend/internal/common/config"
	"github.com/dumeirei/storefront-backend/internal/common/database"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/metrics"
	"github.com/dumeirei/storefront-backend/internal/common/tracing"
	"github.com/dumeirei/storefront-backend/internal/scheduler"
	"github.com/dumeirei/storefront-backend/pkg/broker"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting storefront backend",
		logger.String("version", "1.0.0"),
		logger.String("env", cfg.Server.Mode),
	)

	tracer, err := tracing.Init(&tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Server.Mode,
		Endpoint:       cfg.Tracing.Endpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("failed to init tracing", logger.Err(err))
	}

	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Namespace)
	}

	// 初始化数据库连接
	db, err := database.Init(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect database", logger.Err(err))
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Fatal("failed to migrate database", logger.Err(err))
		}
	}
	logger.Info("database connected")

	// Redis 可选，不可用时下单锁和限流降级为本地实现
	var redisClient redis.UniversalClient
	var rawRedis *redis.Client
	if cfg.Redis.Enabled {
		rawRedis, err = cache.Init(&cfg.Redis)
		if err != nil {
			logger.Fatal("failed to connect redis", logger.Err(err))
		}
		redisClient = rawRedis
		logger.Info("redis connected", logger.String("addr", cfg.Redis.Addr()))
	}

	var producer *broker.Producer
	if cfg.Kafka.Enabled {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, time.Duration(cfg.Kafka.WriteTimeout)*time.Second)
	}

	app, err := buildApp(cfg, db, redisClient, producer)
	if err != nil {
		logger.Fatal("failed to build application", logger.Err(err))
	}

	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "release", "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	setupRouter(engine, cfg, app, db, rawRedis)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sched := scheduler.NewScheduler()
	if err := scheduler.SetupTasks(sched, scheduler.NewTaskHandler(app.relay, app.walletService), cfg.Business.Outbox.IntervalDuration()); err != nil {
		logger.Fatal("failed to setup scheduler", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		app.relay.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", logger.Err(err))
	}

	closeResources(db, rawRedis, producer, tracer)
	logger.Info("server exited")
}

func closeResources(db *gorm.DB, rdb *redis.Client, producer *broker.Producer, tracer *tracing.Tracer) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("failed to close kafka producer", logger.Err(err))
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := tracer.Shutdown(ctx); err != nil {
		logger.Warn("failed to shutdown tracer", logger.Err(err))
	}
}
