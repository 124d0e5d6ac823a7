package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-core/internal/broadcast"
	"messaging-core/internal/config"
	"messaging-core/internal/db"
	"messaging-core/internal/handlers"
	"messaging-core/internal/identity"
	"messaging-core/internal/middleware"
	"messaging-core/internal/observability"
	"messaging-core/internal/pipeline"
	"messaging-core/internal/presence"
	"messaging-core/internal/rabbitmq"
	"messaging-core/internal/readreceipts"
	"messaging-core/internal/repositories"
	"messaging-core/internal/telemetry"
	"messaging-core/internal/ws"
)

const serviceName = "messaging-core"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger := newLogger(cfg.Environment)
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracing, err := telemetry.InitTracing(ctx, serviceName, cfg.Environment, cfg.OTLPEndpoint, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.BroadcastDriver == "redis" || cfg.PresenceDriver == "redis" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	fabric := newFabric(cfg, redisClient, logger)
	registry := newRegistry(cfg, redisClient)

	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	readRepo := repositories.NewReadReceiptRepo(database)

	tracker := readreceipts.NewTracker(readRepo, messageRepo, roomRepo, logger)
	msgPipeline := pipeline.New(roomRepo, messageRepo, fabric, logger)
	hub := ws.NewHub(fabric, logger)

	verifier := identity.NewJWTVerifier(cfg.JWTSecret)

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer auditPublisher.Close()
	logger.Info("audit publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(auditPublisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(auditPublisher)))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Environment, logger)

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		logger.Warn("ws event publishing disabled", zap.Error(err))
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	roomHandler := handlers.NewRoomHandler(roomRepo, messageRepo, tracker, registry, auditEmitter)
	messageHandler := handlers.NewMessageHandler(roomRepo, msgPipeline, auditEmitter)
	wsHandler := ws.NewHandler(hub, roomRepo, msgPipeline, tracker, registry, verifier, logger)

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	auth := middleware.Auth(verifier)

	router.POST("/rooms/direct", auth, roomHandler.StartDirectRoom)
	router.GET("/rooms/:room_id/messages", auth, roomHandler.GetRoomMessages)
	router.POST("/rooms/:room_id/messages", auth, messageHandler.PostMessage)
	router.PATCH("/rooms/:room_id/messages/:message_id", auth, messageHandler.EditMessage)
	router.DELETE("/rooms/:room_id/messages/:message_id", auth, messageHandler.DeleteMessage)
	router.POST("/rooms/:room_id/messages/:message_id/reactions", auth, messageHandler.ToggleReaction)
	router.GET("/rooms/:room_id/messages/:message_id/readers", auth, roomHandler.GetReaders)
	router.POST("/rooms/:room_id/read", auth, roomHandler.MarkRoomRead)
	router.GET("/presence/:user_id", auth, roomHandler.GetPresence)

	router.GET("/ws/rooms/:room_id", wsHandler.HandleRoom)
	router.GET("/ws/direct/:user_id", wsHandler.HandleDirect)

	handlers.RegisterDebugRoutes(router, auditEmitter, handlers.DebugInfo{
		BroadcastDriver: cfg.BroadcastDriver,
		PresenceDriver:  cfg.PresenceDriver,
		PublisherMode:   rabbitmq.PublisherMode(auditPublisher),
	}, cfg.DebugRoutes)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("server starting",
		zap.String("addr", addr),
		zap.String("broadcast_driver", cfg.BroadcastDriver),
		zap.String("presence_driver", cfg.PresenceDriver))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(environment string) *zap.Logger {
	if environment == "prod" {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return logger
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return logger
}

func newFabric(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) broadcast.Fabric {
	switch cfg.BroadcastDriver {
	case "kafka":
		return broadcast.NewKafkaFabric(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	case "redis":
		return broadcast.NewRedisFabric(redisClient, logger)
	default:
		return broadcast.NewLocalFabric(logger)
	}
}

func newRegistry(cfg *config.Config, redisClient *redis.Client) presence.Registry {
	if cfg.PresenceDriver == "redis" {
		return presence.NewRedisRegistry(redisClient)
	}
	return presence.NewMemoryRegistry()
}
