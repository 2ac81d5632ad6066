// Package scheduler drives the weekly refresh pipeline: guild roster,
// then bulk player mounts, then snapshot and publish. Stages run in order
// and fail independently; a failed early stage never blocks a later one,
// which operates on whatever is currently cached.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
	"github.com/johncmanuel/isabot/internal/notify"
)

// GuildRefresher refreshes the cached guild member set.
type GuildRefresher interface {
	Refresh(ctx context.Context) (domain.GuildMemberSet, error)
}

// StatsRefresher runs the bulk per-player mount and battleground refresh.
type StatsRefresher interface {
	RefreshAllStats(ctx context.Context, ts oauth2.TokenSource) error
}

// EntryCreator builds and persists a leaderboard entry.
type EntryCreator interface {
	CreateEntry(ctx context.Context) (domain.LeaderboardEntry, error)
}

// Pipeline runs the scheduled refresh stages.
type Pipeline struct {
	directory  GuildRefresher
	players    StatsRefresher
	aggregator EntryCreator
	notifiers  []notify.Notifier
	creds      oauth2.TokenSource
	cfg        *config.SyncConfig
	logger     *slog.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewPipeline creates the refresh pipeline.
func NewPipeline(
	directory GuildRefresher,
	players StatsRefresher,
	aggregator EntryCreator,
	notifiers []notify.Notifier,
	creds oauth2.TokenSource,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		directory:  directory,
		players:    players,
		aggregator: aggregator,
		notifiers:  notifiers,
		creds:      creds,
		cfg:        cfg,
		logger:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the background schedule.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info("refresh pipeline started", "interval", p.cfg.Interval)

	go p.run(ctx)
	return nil
}

// Stop stops the background schedule.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.logger.Info("refresh pipeline stopped")
	return nil
}

func (p *Pipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	// The ticker first fires a full interval after start. RunOnStart
	// closes that gap for deployments without an external trigger;
	// everyone else covers restarts with the refresh command.
	if p.cfg.RunOnStart {
		if err := p.RunOnce(ctx); err != nil {
			p.logger.Error("startup refresh cycle finished with errors", "error", err)
		}
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error("refresh cycle finished with errors", "error", err)
			}
		}
	}
}

// RunOnce executes one full cycle. Guild and bulk-refresh failures are
// logged and the cycle continues; a snapshot failure aborts, and a
// delivery failure is returned but never retracts the persisted entry.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	start := time.Now()
	p.logger.Info("starting refresh cycle")

	if err := p.RefreshGuild(ctx); err != nil {
		p.logger.Error("guild refresh failed, later stages use the cached set", "error", err)
	}

	if err := p.RefreshPlayers(ctx); err != nil {
		p.logger.Error("bulk player refresh failed", "error", err)
	}

	err := p.Publish(ctx)

	p.logger.Info("refresh cycle completed", "duration", time.Since(start))
	return err
}

// RefreshGuild runs stage one: overwrite the cached guild member set.
func (p *Pipeline) RefreshGuild(ctx context.Context) error {
	_, err := p.directory.Refresh(ctx)
	return err
}

// RefreshPlayers runs stage two: the bulk per-player stats refresh.
func (p *Pipeline) RefreshPlayers(ctx context.Context) error {
	return p.players.RefreshAllStats(ctx, p.creds)
}

// Publish runs stage three: create a snapshot and hand it to every
// notifier. Notifier failures are joined and surfaced to the caller.
func (p *Pipeline) Publish(ctx context.Context) error {
	entry, err := p.aggregator.CreateEntry(ctx)
	if err != nil {
		return fmt.Errorf("creating leaderboard entry: %w", err)
	}

	var errs []error
	for _, n := range p.notifiers {
		if err := n.PublishEntry(ctx, entry); err != nil {
			p.logger.Error("entry delivery failed", "entry_id", entry.EntryID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsRunning returns whether the schedule is active.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
