// Package main runs the live Q&A HTTP server with WebSocket fan-out and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/askwave/liveqa/config"
	"github.com/askwave/liveqa/internal/events"
	"github.com/askwave/liveqa/internal/middleware"
	"github.com/askwave/liveqa/internal/questions"
	"github.com/askwave/liveqa/internal/realtime"
	"github.com/askwave/liveqa/pkg/database"
	"github.com/askwave/liveqa/pkg/redis"
	"github.com/askwave/liveqa/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	var hub *realtime.Hub
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		// Single-instance fallback: local fan-out only.
		logger.Warn("redis unavailable, cross-instance broadcast disabled", zap.Error(err))
		hub = realtime.NewHub(logger, nil, nil)
	} else {
		defer rdb.Close()
		pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub, pubsub)
	}

	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo)

	questionRepo := questions.NewRepository(pool)
	questionHandler := questions.NewHandler(questionRepo, eventRepo, hub)

	hub.SetAudienceChangeHandler(func(eventID uuid.UUID, count int) {
		if err := eventRepo.UpdateAudiencePeak(context.Background(), eventID, count); err != nil {
			logger.Warn("update audience peak", zap.Error(err))
		}
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api/v1")
	{
		api.GET("/events/code/:code", eventHandler.GetByCode)
		api.GET("/events/:id", eventHandler.GetByID)
		api.GET("/events/:id/questions", questionHandler.ListByEvent)
		api.POST("/events/:id/questions", questionHandler.Create)
		api.GET("/events/:id/questions/:questionID", questionHandler.Get)
		api.PUT("/events/:id/questions/:questionID", questionHandler.Update)
		api.POST("/events/:id/questions/:questionID/like", questionHandler.Like)
		api.GET("/ws/events/:id", realtime.ServeWs(hub, logger))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
