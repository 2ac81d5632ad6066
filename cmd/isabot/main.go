package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/johncmanuel/isabot/internal/bnet"
	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/guild"
	"github.com/johncmanuel/isabot/internal/handler"
	"github.com/johncmanuel/isabot/internal/leaderboard"
	"github.com/johncmanuel/isabot/internal/notify"
	"github.com/johncmanuel/isabot/internal/player"
	"github.com/johncmanuel/isabot/internal/scheduler"
	"github.com/johncmanuel/isabot/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("opening record store", "driver", cfg.Storage.Driver)
	recordStore, err := store.Open(ctx, &cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer recordStore.Close()

	client := bnet.NewClient(&cfg.BattleNet, logger)
	creds := bnet.ClientCredentialsSource(ctx, &cfg.BattleNet)

	directory := guild.NewDirectory(recordStore, client, creds, &cfg.Guild, logger)
	playerSync := player.NewSync(recordStore, client, directory, &cfg.Guild, cfg.Sync.CharacterRefreshWindow, logger)
	aggregator := leaderboard.NewAggregator(recordStore, logger)

	var notifiers []notify.Notifier
	if cfg.Discord.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Discord.WebhookURL, cfg.Discord.SignInURL, logger))
	}
	if cfg.Kafka.Enabled {
		publisher, err := notify.NewKafkaPublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create kafka publisher, continuing without it", "error", err)
		} else {
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
		}
	}

	pipeline := scheduler.NewPipeline(directory, playerSync, aggregator, notifiers, creds, &cfg.Sync, logger)
	if cfg.Sync.Enabled {
		if err := pipeline.Start(ctx); err != nil {
			logger.Error("failed to start refresh pipeline", "error", err)
			os.Exit(1)
		}
	}

	oauthConfig := bnet.OAuthConfig(&cfg.BattleNet, cfg.Server.BaseURL+"/callback")
	httpHandler := handler.NewHandler(
		playerSync,
		aggregator,
		client,
		oauthConfig,
		recordStore,
		cfg.Server.SessionTTL,
		logger,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if cfg.Sync.Enabled {
		if err := pipeline.Stop(); err != nil {
			logger.Error("failed to stop refresh pipeline", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
