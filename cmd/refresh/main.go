// Command refresh runs the weekly pipeline stages on demand, outside the
// schedule. Useful after a config change or a missed cron window.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/johncmanuel/isabot/internal/bnet"
	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/guild"
	"github.com/johncmanuel/isabot/internal/leaderboard"
	"github.com/johncmanuel/isabot/internal/notify"
	"github.com/johncmanuel/isabot/internal/player"
	"github.com/johncmanuel/isabot/internal/scheduler"
	"github.com/johncmanuel/isabot/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	stage := flag.String("stage", "all", "Stage to run: guild, players, publish, or all")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx := context.Background()

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

	switch *stage {
	case "guild":
		err = pipeline.RefreshGuild(ctx)
	case "players":
		err = pipeline.RefreshPlayers(ctx)
	case "publish":
		err = pipeline.Publish(ctx)
	case "all":
		err = pipeline.RunOnce(ctx)
	default:
		logger.Error("unknown stage", "stage", *stage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("stage finished with errors", "stage", *stage, "error", err)
		os.Exit(1)
	}
	logger.Info("stage completed", "stage", *stage)
}
