package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oggyb/matchpoint/internal/api"
	"github.com/oggyb/matchpoint/internal/app"
	"github.com/oggyb/matchpoint/internal/cache"
	"github.com/oggyb/matchpoint/internal/chat"
	"github.com/oggyb/matchpoint/internal/config"
	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/identity"
	"github.com/oggyb/matchpoint/internal/lifecycle"
	"github.com/oggyb/matchpoint/internal/logger"
	"github.com/oggyb/matchpoint/internal/repository"
	"github.com/oggyb/matchpoint/internal/service/swipe"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	// Chat stack: registry + gate collaborators.
	chatLog := logger.Named("chat")
	matchRepo := repository.NewMatchRepository(appCtx.DB)
	messageRepo := repository.NewMessageRepository(appCtx.DB)
	provider := identity.NewProvider(redisCache, database, cfg.Auth.TokenTTL)
	registry := chat.NewRegistry(matchRepo, chatLog)

	// REST surface: swipes, blocks, match lifecycle, message history.
	swipeService := swipe.NewService(appCtx)
	manager := lifecycle.NewManager(appCtx, registry)
	apiHandler := api.NewHandler(swipeService, manager, provider, messageRepo, logger.Named("api"))

	chatCfg := chat.DefaultServerConfig()
	chatCfg.ListenAddr = cfg.Chat.Host + ":" + cfg.Chat.Port
	server := chat.NewServer(chatCfg, registry, provider, messageRepo, chatLog, apiHandler)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("shutdown error", "err", err)
		}
	}()

	log.Info("starting chat server", "addr", chatCfg.ListenAddr)
	if err := server.Start(); err != nil {
		log.Error("chat server error", "err", err)
	}
}
