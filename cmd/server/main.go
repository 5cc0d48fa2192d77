package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hotpot-chat/internal/auth"
	"hotpot-chat/internal/config"
	"hotpot-chat/internal/database"
	"hotpot-chat/internal/events"
	"hotpot-chat/internal/handlers"
	"hotpot-chat/internal/notify"
	"hotpot-chat/internal/presence"
	"hotpot-chat/internal/ratelimit"
	"hotpot-chat/internal/services"
	"hotpot-chat/internal/telemetry"
	"hotpot-chat/internal/websocket"
	"hotpot-chat/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	// Initialize database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Failed to open database")
	}

	limiter := ratelimit.NewNoop()
	if cfg.Redis.Enabled {
		rdb, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to redis")
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit)
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Events.Driver).Msg("Failed to create event publisher")
	}

	// Presence and realtime delivery
	registry := presence.NewRegistry()
	hub := websocket.NewHub(registry, presence.NewGroups())
	gateway := notify.NewGateway(hub, registry, publisher, cfg.Notify.QueueSize)
	gateway.Start()

	// Initialize services
	chatRouter := services.NewChatRouter(db, db, registry, gateway, limiter)
	authService := auth.NewService(db, cfg.Auth)

	router := handlers.NewRouter(handlers.RouterDeps{
		Auth:           authService,
		AuthHandlers:   handlers.NewAuthHandlers(authService),
		ChatHandlers:   handlers.NewChatHandlers(chatRouter),
		WSHandlers:     handlers.NewWebSocketHandlers(hub, chatRouter, cfg.Server.AllowedOrigins),
		Store:          db,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      telemetry.WrapHandler(router, cfg.Telemetry),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Infof("🚀 Server started on http://%s", cfg.Server.Addr())
	logger.Infof("📡 WebSocket endpoint: ws://%s/ws", cfg.Server.Addr())
	printAPIEndpoints(cfg)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	hub.CloseAll()
	gateway.Close()
	if err := publisher.Close(); err != nil {
		logger.Error().Err(err).Msg("Event publisher close failed")
	}
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Database close failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Tracer shutdown failed")
	}
	logger.Info().Msg("Server stopped")
}

func printAPIEndpoints(cfg *config.Config) {
	logger.Info().Msg("🔗 API endpoints:")
	logger.Info().Msg("   GET  /api/v1/health")
	logger.Info().Msg("   GET  /api/v1/ready")
	logger.Info().Msg("   POST /api/v1/auth/register")
	logger.Info().Msg("   POST /api/v1/auth/login")
	logger.Info().Msg("   POST /api/v1/chat/sessions")
	logger.Info().Msg("   GET  /api/v1/chat/sessions")
	logger.Info().Msg("   GET  /api/v1/chat/sessions/pending")
	logger.Info().Msg("   GET  /api/v1/chat/sessions/{id}")
	logger.Info().Msg("   POST /api/v1/chat/sessions/{id}/join")
	logger.Info().Msg("   POST /api/v1/chat/sessions/{id}/end")
	logger.Info().Msg("   GET  /api/v1/chat/sessions/{id}/messages")
	logger.Info().Msg("   POST /api/v1/chat/sessions/{id}/messages")
	logger.Info().Msg("   POST /api/v1/chat/messages")
	logger.Info().Msg("   GET  /api/v1/chat/messages/unread")
	logger.Info().Msg("   POST /api/v1/chat/messages/{id}/read")
	if cfg.Metrics.Enabled {
		logger.Info().Msgf("   GET  %s", cfg.Metrics.Path)
	}
}
