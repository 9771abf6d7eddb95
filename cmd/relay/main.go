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

	"github.com/gin-gonic/gin"

	"github.com/driftchat/relay/internal/auth"
	"github.com/driftchat/relay/internal/config"
	"github.com/driftchat/relay/internal/handler"
	"github.com/driftchat/relay/internal/hub"
	"github.com/driftchat/relay/internal/presence"
	"github.com/driftchat/relay/internal/service"
	"github.com/driftchat/relay/internal/store"
	"github.com/driftchat/relay/pkg/database"
	"github.com/driftchat/relay/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{
		Level:       cfg.Log.Level,
		ServiceName: "relay",
	})
	logger := log.L()

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("auth.jwt_secret is required")
	}

	msgStore, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize message store")
	}
	defer closeStore()

	sessions := hub.NewHub()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	broadcaster := presence.NewBroadcaster(sessions)
	relay := service.NewRelayService(sessions, msgStore, tokens, broadcaster, cfg.History.RoomReplayLimit)

	wsHandler := handler.NewWSHandler(relay, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(sessions, msgStore, cfg.History.RoomReplayLimit)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))

	router.GET("/health", httpHandler.Health)
	router.GET("/ws", wsHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	{
		api.GET("/online", httpHandler.Online)
		api.GET("/history/room", httpHandler.RoomHistory)
		api.POST("/admin/reset", handler.AdminGate(cfg.Admin.Token), httpHandler.AdminReset)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	closed := sessions.Reset()
	logger.Info().Int("connections_closed", closed).Msg("relay stopped")
}

// buildStore assembles the message store from config: driver "memory" keeps
// messages in-process, any other driver goes through GORM, and Redis caching
// wraps whichever backing was chosen.
func buildStore(cfg *config.Config) (store.MessageStore, func(), error) {
	var (
		backing store.MessageStore
		cleanup = func() {}
	)

	if cfg.Database.Driver == "memory" {
		backing = store.NewMemoryStore()
	} else {
		db, err := database.New(&database.Config{
			Driver:          cfg.Database.Driver,
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			DBName:          cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			FilePath:        cfg.Database.FilePath,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := database.AutoMigrate(db, store.Models()...); err != nil {
			return nil, nil, err
		}
		backing = store.NewGormStore(db)
		cleanup = func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}
	}

	if !cfg.Redis.Enabled {
		return backing, cleanup, nil
	}

	cache, err := store.NewRedisHistoryCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CachePrefix)
	if err != nil {
		return nil, nil, err
	}
	dbCleanup := cleanup
	cleanup = func() {
		cache.Close()
		dbCleanup()
	}
	return store.NewCachedStore(backing, cache, cfg.Redis.CacheTTL), cleanup, nil
}
