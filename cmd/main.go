package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"storefront/support-service/internal/config"
	"storefront/support-service/internal/handler"
	"storefront/support-service/internal/repository"
	"storefront/support-service/internal/services"
	"storefront/support-service/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to build logger: ", err)
	}
	defer logger.Sync()

	ctx, shutdownManager := utils.NewShutdownManager(context.Background(), logger)
	shutdownManager.StartListening()

	// Storage
	var repo services.Repository
	switch cfg.MongoDB.Driver {
	case "memory":
		logger.Warn("Using in-memory storage; data is lost on restart")
		repo = repository.NewMemoryRepository()
	default:
		mongoClient, err := connectMongo(ctx, cfg.MongoDB.URI)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		shutdownManager.Register(func(ctx context.Context) error {
			logger.Info("[SHUTDOWN] Closing MongoDB connection...")
			return mongoClient.Disconnect(ctx)
		})

		mongoRepo := repository.NewMongoRepository(mongoClient, cfg.MongoDB.DBName)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			logger.Fatal("Failed to create indexes", zap.Error(err))
		}
		repo = mongoRepo
	}

	// Redis is optional
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = utils.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		shutdownManager.Register(func(ctx context.Context) error {
			logger.Info("[SHUTDOWN] Closing Redis connection...")
			return rdb.Close()
		})
	}

	var verifier utils.IdentityVerifier
	switch cfg.Auth.Mode {
	case "remote":
		verifier = utils.NewAuthServiceVerifier(cfg.Auth.AuthServiceURL)
	default:
		verifier = utils.NewJWTVerifier(cfg.Auth.JWTSecret)
	}

	var notifier services.Notifier
	switch cfg.Notification.Mode {
	case "http":
		notifier = utils.NewNotificationClient(cfg.Notification.ServiceURL)
	case "redis":
		notifier = utils.NewRedisPublisher(rdb)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	chatService := services.NewChatService(repo, notifier, logger).
		WithMetrics(utils.NewMetrics(registry))
	if rdb != nil {
		cache := utils.NewRedisCache(rdb, cfg.Cache.SessionTTL, cfg.Cache.AnalyticsTTL, logger)
		chatService.WithCache(cache, cache)
	}

	// Background jobs
	if cfg.Reaper.Enabled {
		reaper := services.NewSessionReaper(chatService, cfg.Reaper.Interval, cfg.Reaper.IdleTimeout, cfg.Reaper.BatchSize, logger)
		reaper.Start(ctx)
		shutdownManager.Register(func(ctx context.Context) error {
			select {
			case <-reaper.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	limiterOpts := utils.DefaultRateLimiterOptions()
	limiterOpts.Limit = rate.Limit(cfg.Polling.RateLimit)
	limiterOpts.Burst = cfg.Polling.RateBurst
	pollLimiter := utils.NewRateLimiter(logger, limiterOpts)
	pollLimiter.StartCleanup(ctx)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.RouterConfig{
		Service:     chatService,
		Verifier:    verifier,
		PollLimiter: pollLimiter,
		Gatherer:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Support service running", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	shutdownManager.Register(func(ctx context.Context) error {
		logger.Info("[SHUTDOWN] Shutting down HTTP server...")
		return server.Shutdown(ctx)
	})

	<-shutdownManager.Done()
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}
	return client, nil
}
